// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package verifycmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iron-fish/snapshotter/pkg/application"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/snapshot"
	"github.com/iron-fish/snapshotter/pkg/ux"
)

// NewCmd creates the verify command
func NewCmd(_ *application.Snapshotter) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive> [manifest]",
		Short: "Check a local archive against its manifest",
		Long: `The verify command recomputes the SHA-256 digest and size of a local
snapshot archive and compares them with the manifest. When no manifest path
is given, manifest.json next to the archive is used.

Example:
  snapshotter verify ./snapshot/ironfish_snapshot_1700000000000.tar.gz`,
		Args:         cobra.RangeArgs(1, 2),
		RunE:         runVerify,
		SilenceUsage: true,
	}
}

func runVerify(_ *cobra.Command, args []string) error {
	archivePath := args[0]
	manifestPath := filepath.Join(filepath.Dir(archivePath), constants.ManifestFileName)
	if len(args) == 2 {
		manifestPath = args[1]
	}

	manifest, err := snapshot.ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	checksum, size, err := snapshot.FileDigest(archivePath)
	if err != nil {
		return err
	}

	if filepath.Base(archivePath) != manifest.FileName {
		ux.Logger.PrintToUser("note: archive name %s differs from manifest file_name %s", filepath.Base(archivePath), manifest.FileName)
	}
	if size != manifest.FileSize {
		return fmt.Errorf("size mismatch: archive is %d bytes, manifest says %d", size, manifest.FileSize)
	}
	if checksum != manifest.Checksum {
		return fmt.Errorf("checksum mismatch: archive is %s, manifest says %s", checksum, manifest.Checksum)
	}

	ux.Logger.GreenCheckmarkToUser("archive matches manifest (height %d, %d bytes)", manifest.BlockHeight, manifest.FileSize)
	return nil
}
