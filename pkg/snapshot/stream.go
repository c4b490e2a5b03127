// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/noderpc"
	"github.com/iron-fish/snapshotter/pkg/status"
)

// blockSource is the read side of one export stream.
type blockSource interface {
	Bounds() (noderpc.Bounds, error)
	Next() (noderpc.BlockRecord, error)
}

// recordBuffer decouples stream reads from file writes so the write of
// record n can overlap the network wait for record n+1.
const recordBuffer = 16

// consumeBlocks reads the bounds message, then drains the stream into one
// file per block under blocksDir. A record is written only if it carries a
// nonzero sequence inside the announced bounds and a non-empty payload;
// anything else is protocol padding and is skipped. Progress is advisory
// and reports the most recently written sequence after each completed
// write.
//
// The stream must end only after the stop bound has been written; a clean
// EOF before that is a truncated snapshot and fails the job.
func consumeBlocks(ctx context.Context, src blockSource, blocksDir string, tracker *status.ProgressTracker) (noderpc.Bounds, error) {
	bounds, err := src.Bounds()
	if err != nil {
		return noderpc.Bounds{}, err
	}

	var bar *progressbar.ProgressBar
	if tracker != nil {
		total := int(bounds.Stop - bounds.Start + 1)
		bar = tracker.CreateProgressBar("downloading blocks", total)
	}

	records := make(chan noderpc.BlockRecord, recordBuffer)
	stopWritten := false

	g, ctx := errgroup.WithContext(ctx)
	// a write failure must also unblock a reader parked on the network
	if closer, ok := src.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			_ = closer.Close()
		}()
	}
	g.Go(func() error {
		defer close(records)
		for {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stream read failed: %w", err)
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rec, ok := <-records:
				if !ok {
					return nil
				}
				if rec.Sequence == 0 || len(rec.Payload) == 0 {
					continue
				}
				if rec.Sequence < bounds.Start || rec.Sequence > bounds.Stop {
					continue
				}
				path := filepath.Join(blocksDir, strconv.FormatUint(rec.Sequence, 10))
				if err := os.WriteFile(path, rec.Payload, constants.WriteReadReadPerms); err != nil {
					return fmt.Errorf("failed to write block %d: %w", rec.Sequence, err)
				}
				if rec.Sequence == bounds.Stop {
					stopWritten = true
				}
				if bar != nil {
					_ = bar.Add(1)
					bar.Describe(fmt.Sprintf("block %d", rec.Sequence))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return bounds, err
	}
	if !stopWritten {
		return bounds, fmt.Errorf("stream ended before block %d was received", bounds.Stop)
	}
	return bounds, nil
}
