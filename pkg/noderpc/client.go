// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

// Package noderpc implements the client side of the node's snapshot export
// stream: newline-delimited JSON messages over a single tcp or unix socket
// connection. The first message carries the block range bounds, every
// message after it carries at most one block record.
package noderpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/iron-fish/snapshotter/pkg/constants"
)

const exportBlocksRoute = "snapshot/exportBlocks"

// Client connects to a node's RPC socket.
type Client struct {
	addr string
}

// NewClient creates a client for the given address. Addresses containing a
// path separator are treated as unix sockets, anything else as host:port.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) network() string {
	if strings.Contains(c.addr, "/") {
		return "unix"
	}
	return "tcp"
}

// exportRequest is the single request message opening the stream.
type exportRequest struct {
	Route             string `json:"route"`
	MaxBlocksPerChunk int    `json:"maxBlocksPerChunk"`
}

// streamMessage is the wire shape of every message after the request.
// The first message populates start/stop, later ones sequence/payload.
// Fields a message does not carry decode to their zero values.
type streamMessage struct {
	Start    uint64 `json:"start,omitempty"`
	Stop     uint64 `json:"stop,omitempty"`
	Sequence uint64 `json:"sequence,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
}

// Bounds is the inclusive block range announced by the node before any
// block record is sent.
type Bounds struct {
	Start uint64
	Stop  uint64
}

// BlockRecord is one streamed block. Records with a zero sequence or an
// empty payload are protocol padding and carry no block.
type BlockRecord struct {
	Sequence uint64
	Payload  []byte
}

// ExportBlocks opens the export stream. The connection is closed when ctx
// is canceled, which unblocks any in-flight read on the stream.
func (c *Client) ExportBlocks(ctx context.Context, maxBlocksPerChunk int) (*Stream, error) {
	dialer := net.Dialer{Timeout: constants.NodeDialTimeout}
	conn, err := dialer.DialContext(ctx, c.network(), c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node at %s: %w", c.addr, err)
	}

	req := exportRequest{
		Route:             exportBlocksRoute,
		MaxBlocksPerChunk: maxBlocksPerChunk,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send export request: %w", err)
	}

	s := &Stream{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
		done: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Stream is one logical export stream. Bounds must be read before Next;
// the stream is never re-opened to fetch bounds since the node does not
// replay it.
type Stream struct {
	conn       net.Conn
	dec        *json.Decoder
	done       chan struct{}
	closeOnce  sync.Once
	bounds     Bounds
	boundsRead bool
}

// Bounds reads the single bounds message. The first call consumes it from
// the wire; later calls return the cached value.
func (s *Stream) Bounds() (Bounds, error) {
	if s.boundsRead {
		return s.bounds, nil
	}
	var msg streamMessage
	if err := s.dec.Decode(&msg); err != nil {
		return Bounds{}, fmt.Errorf("failed to read stream bounds: %w", err)
	}
	if msg.Stop < msg.Start {
		return Bounds{}, fmt.Errorf("node sent invalid bounds: start %d, stop %d", msg.Start, msg.Stop)
	}
	s.bounds = Bounds{Start: msg.Start, Stop: msg.Stop}
	s.boundsRead = true
	return s.bounds, nil
}

// Next returns the next block record, or io.EOF when the node has closed
// the stream cleanly.
func (s *Stream) Next() (BlockRecord, error) {
	if !s.boundsRead {
		return BlockRecord{}, fmt.Errorf("stream bounds not read")
	}
	var msg streamMessage
	if err := s.dec.Decode(&msg); err != nil {
		return BlockRecord{}, err
	}
	return BlockRecord{Sequence: msg.Sequence, Payload: msg.Payload}, nil
}

// Close is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
