// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/iron-fish/snapshotter/pkg/constants"
)

// Manifest describes a published snapshot archive: its identity, integrity
// digest, and the height of the highest block it contains.
type Manifest struct {
	BlockHeight uint64 `json:"block_height"`
	Checksum    string `json:"checksum"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	Timestamp   int64  `json:"timestamp"`
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, constants.WriteReadReadPerms)
}

// ReadManifest parses a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
