// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

// Package testutils hosts the fake node used by stream and pipeline tests.
package testutils

import (
	"bufio"
	"encoding/json"
	"net"
)

// FakeRecord is one scripted stream message.
type FakeRecord struct {
	Sequence uint64 `json:"sequence,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
}

type boundsMessage struct {
	Start uint64 `json:"start"`
	Stop  uint64 `json:"stop"`
}

// FakeNode scripts one export stream over a real TCP listener.
type FakeNode struct {
	ln net.Listener

	Start   uint64
	Stop    uint64
	Records []FakeRecord
	// TruncateAfter, when >= 0, closes the connection after that many
	// records, simulating a node dying mid-stream.
	TruncateAfter int
}

// StartFakeNode begins serving a single export stream on a random local
// port. Callers must Close it.
func StartFakeNode(start, stop uint64, records []FakeRecord) (*FakeNode, error) {
	return launch(start, stop, records, -1)
}

// StartTruncatedFakeNode closes the connection after sending the given
// number of records.
func StartTruncatedFakeNode(start, stop uint64, records []FakeRecord, after int) (*FakeNode, error) {
	return launch(start, stop, records, after)
}

func launch(start, stop uint64, records []FakeRecord, truncateAfter int) (*FakeNode, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	n := &FakeNode{
		ln:            ln,
		Start:         start,
		Stop:          stop,
		Records:       records,
		TruncateAfter: truncateAfter,
	}
	go n.serve()
	return n, nil
}

// Addr returns the host:port the fake node listens on.
func (n *FakeNode) Addr() string {
	return n.ln.Addr().String()
}

func (n *FakeNode) Close() error {
	return n.ln.Close()
}

func (n *FakeNode) serve() {
	conn, err := n.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	// consume the export request line
	if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
		return
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(boundsMessage{Start: n.Start, Stop: n.Stop}); err != nil {
		return
	}
	for i, rec := range n.Records {
		if n.TruncateAfter >= 0 && i >= n.TruncateAfter {
			return
		}
		if err := enc.Encode(rec); err != nil {
			return
		}
	}
}
