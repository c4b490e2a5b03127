// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package exportcmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iron-fish/snapshotter/pkg/application"
	"github.com/iron-fish/snapshotter/pkg/archive"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/snapshot"
	"github.com/iron-fish/snapshotter/pkg/status"
	"github.com/iron-fish/snapshotter/pkg/ux"
)

var (
	excludes      []string
	noExternalTar bool
)

// NewCmd creates the export command
func NewCmd(app *application.Snapshotter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Stream blocks from a node and produce a snapshot archive",
		Long: `The export command connects to a running node, streams every block in the
chain out over the node's RPC socket, and packs the result into a single
ironfish_snapshot_<timestamp>.tar.gz archive with a SHA-256 checksum.

When --bucket is set the archive is uploaded to the bucket, followed by a
manifest.json describing it. Without --bucket the archive is left in the
working directory and nothing is uploaded.

Examples:
  snapshotter export --path ./snapshot
  snapshotter export --bucket snapshots.ironfish.network
  snapshotter export --node 127.0.0.1:8020 --max-blocks-per-chunk 500`,
		Args:         cobra.ExactArgs(0),
		RunE:         func(cmd *cobra.Command, _ []string) error { return runExport(cmd, app) },
		SilenceUsage: true,
	}

	cmd.Flags().String(constants.ConfigPathKey, "", "working directory for the snapshot (default is a fresh directory)")
	cmd.Flags().String(constants.ConfigBucketKey, "", "bucket host to publish the snapshot to (disabled when empty)")
	cmd.Flags().Int(constants.ConfigMaxBlocksPerChunkKey, constants.DefaultMaxBlocksPerChunk, "max blocks per chunk hint forwarded to the node")
	cmd.Flags().String(constants.ConfigNodeAddressKey, constants.DefaultNodeAddress, "node RPC address (host:port or unix socket path)")
	cmd.Flags().String(constants.ConfigUploadBackendKey, constants.UploadBackendPut, "upload backend (put or s3)")
	cmd.Flags().String(constants.ConfigRegionKey, "", "bucket region (s3 backend only)")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "entry patterns to exclude from the archive (repeatable)")
	cmd.Flags().BoolVar(&noExternalTar, "no-external-tar", false, "build the archive in-process instead of invoking the system tar")

	return cmd
}

func runExport(cmd *cobra.Command, app *application.Snapshotter) error {
	if err := app.Conf.BindFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg := snapshot.ExportConfig{
		NodeAddress:       app.Conf.GetConfigStringValue(constants.ConfigNodeAddressKey),
		WorkingDir:        app.Conf.GetConfigStringValue(constants.ConfigPathKey),
		Bucket:            app.Conf.GetConfigStringValue(constants.ConfigBucketKey),
		MaxBlocksPerChunk: app.Conf.GetConfigIntValue(constants.ConfigMaxBlocksPerChunkKey),
		Excludes:          excludes,
		UploadBackend:     app.Conf.GetConfigStringValue(constants.ConfigUploadBackendKey),
		Region:            app.Conf.GetConfigStringValue(constants.ConfigRegionKey),
	}
	if cfg.WorkingDir == "" && cfg.Bucket == "" {
		// nothing to publish, so keep the archive somewhere findable
		cfg.WorkingDir = filepath.Join(app.GetSnapshotsDir(), time.Now().UTC().Format("2006-01-02T150405"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := status.NewProgressTracker(os.Stdout)
	exporter, err := snapshot.NewExporter(cfg, app.Log, tracker)
	if err != nil {
		return err
	}
	if noExternalTar {
		exporter.SetBuilder(&archive.GzipBuilder{})
	}

	result, err := exporter.Export(ctx)
	if err != nil {
		ux.Logger.RedXToUser("snapshot export failed: %s", err)
		return err
	}

	ux.Logger.PrintLineSeparator()
	ux.Logger.GreenCheckmarkToUser("exported blocks %d-%d", result.Bounds.Start, result.Bounds.Stop)
	ux.Logger.PrintToUser("sha256:  %s", result.Checksum)
	ux.Logger.PrintToUser("size:    %d bytes", result.ArchiveSize)
	if result.Published {
		ux.Logger.PrintToUser("bucket:  https://%s/%s", cfg.Bucket, filepath.Base(result.ArchivePath))
	} else {
		ux.Logger.PrintToUser("archive: %s", result.ArchivePath)
	}
	return nil
}
