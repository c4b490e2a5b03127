// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package listcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iron-fish/snapshotter/pkg/application"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/snapshot"
	"github.com/iron-fish/snapshotter/pkg/ux"
)

// NewCmd creates the list command
func NewCmd(app *application.Snapshotter) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locally produced snapshot archives",
		Long: `The list command shows every snapshot archive found under the data
directory, with its size and, when a manifest sits next to it, the block
height it covers.

Example:
  snapshotter list`,
		Args: cobra.ExactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			return listSnapshots(app)
		},
		SilenceUsage: true,
	}
}

func listSnapshots(app *application.Snapshotter) error {
	snapshotsDir := app.GetSnapshotsDir()

	type row struct {
		name   string
		size   int64
		height string
	}
	var rows []row

	err := filepath.WalkDir(snapshotsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, constants.ArchivePrefix) || !strings.HasSuffix(name, constants.ArchiveSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		height := "-"
		manifestPath := filepath.Join(filepath.Dir(path), constants.ManifestFileName)
		if m, err := snapshot.ReadManifest(manifestPath); err == nil && m.FileName == name {
			height = fmt.Sprintf("%d", m.BlockHeight)
		}
		rows = append(rows, row{name: name, size: info.Size(), height: height})
		return nil
	})
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		ux.Logger.PrintToUser("no snapshots found in %s", snapshotsDir)
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("archive", "size (bytes)", "block height")
	for _, r := range rows {
		_ = table.Append([]string{r.name, fmt.Sprintf("%d", r.size), r.height})
	}
	return table.Render()
}
