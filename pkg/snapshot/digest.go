// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// digestChunkSize bounds how much of the archive is held in memory while
// hashing.
const digestChunkSize = 1 << 20

// FileDigest streams the file at path through SHA-256 and returns the
// lowercase hex digest together with the file's byte size. The size comes
// from the filesystem, not from summing read chunks, so an interrupted and
// retried read cannot skew it.
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}
