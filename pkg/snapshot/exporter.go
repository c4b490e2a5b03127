// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

// Package snapshot implements the export pipeline: stream blocks from a
// node into per-sequence files, pack them into one tar.gz, hash it, and
// optionally publish archive plus manifest to a bucket.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/iron-fish/snapshotter/pkg/archive"
	"github.com/iron-fish/snapshotter/pkg/cloud/storage"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/noderpc"
	"github.com/iron-fish/snapshotter/pkg/status"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StagePrepare        Stage = "prepare directory"
	StageStream         Stage = "stream blocks"
	StageArchive        Stage = "build archive"
	StageDigest         Stage = "compute digest"
	StageUploadArchive  Stage = "upload archive"
	StageWriteManifest  Stage = "write manifest"
	StageUploadManifest Stage = "upload manifest"
)

// StageError marks a job failure with the stage it happened in. Stages are
// never retried; the whole job either completes or fails.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExportConfig carries everything an export job needs. Components never
// read ambient configuration.
type ExportConfig struct {
	// NodeAddress is the node's RPC socket (host:port or unix path).
	NodeAddress string
	// WorkingDir holds all intermediate artifacts. Empty means a fresh
	// temp directory, removed after a successful publish.
	WorkingDir string
	// Bucket enables publishing when set. Empty disables the publish
	// branch entirely; the job still succeeds.
	Bucket string
	// MaxBlocksPerChunk is a hint forwarded to the node, not enforced
	// locally.
	MaxBlocksPerChunk int
	// Excludes are passed to the archive builder.
	Excludes []string
	// UploadBackend selects the publish transport ("put" or "s3").
	UploadBackend string
	Region        string
}

// Result describes a completed export.
type Result struct {
	WorkingDir   string
	ArchivePath  string
	ArchiveSize  int64
	Checksum     string
	Bounds       noderpc.Bounds
	ManifestPath string
	Published    bool
}

// Exporter runs one export job. It exclusively owns the working directory
// for the job's lifetime; no two jobs may share one.
type Exporter struct {
	cfg      ExportConfig
	log      *zap.SugaredLogger
	tracker  *status.ProgressTracker
	client   *noderpc.Client
	builder  archive.Builder
	uploader storage.Uploader
}

// NewExporter wires an exporter from config. The uploader is only built
// when a bucket is configured.
func NewExporter(cfg ExportConfig, log *zap.SugaredLogger, tracker *status.ProgressTracker) (*Exporter, error) {
	e := &Exporter{
		cfg:     cfg,
		log:     log,
		tracker: tracker,
		client:  noderpc.NewClient(cfg.NodeAddress),
		builder: archive.NewBuilder(),
	}
	if cfg.Bucket != "" {
		uploader, err := storage.NewUploader(context.Background(), cfg.UploadBackend, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, err
		}
		e.uploader = uploader
	}
	return e, nil
}

// SetUploader replaces the publish transport.
func (e *Exporter) SetUploader(u storage.Uploader) {
	e.uploader = u
}

// SetBuilder replaces the archive builder.
func (e *Exporter) SetBuilder(b archive.Builder) {
	e.builder = b
}

// Export runs the pipeline to completion. Stages run strictly in order and
// any failure is terminal for the job; partial artifacts are left in place
// for inspection.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	workingDir, ephemeral, err := e.prepareDir()
	if err != nil {
		return nil, &StageError{Stage: StagePrepare, Err: err}
	}
	blocksDir := filepath.Join(workingDir, constants.BlocksDirName)
	e.log.Infow("export job starting", "workingDir", workingDir, "node", e.cfg.NodeAddress)

	result := &Result{WorkingDir: workingDir}

	e.startStep(string(StageStream))
	stream, err := e.client.ExportBlocks(ctx, e.cfg.MaxBlocksPerChunk)
	if err != nil {
		return nil, e.failStep(StageStream, err)
	}
	bounds, err := consumeBlocks(ctx, stream, blocksDir, e.tracker)
	_ = stream.Close()
	if err != nil {
		return nil, e.failStep(StageStream, err)
	}
	result.Bounds = bounds
	e.completeStep(string(StageStream))
	e.log.Infow("blocks downloaded", "start", bounds.Start, "stop", bounds.Stop)

	timestamp := time.Now().UnixMilli()
	archiveName := fmt.Sprintf("%s%d%s", constants.ArchivePrefix, timestamp, constants.ArchiveSuffix)
	archivePath := filepath.Join(workingDir, archiveName)

	e.startStep(string(StageArchive))
	if err := e.builder.Archive(ctx, blocksDir, archivePath, e.cfg.Excludes); err != nil {
		return nil, e.failStep(StageArchive, err)
	}
	result.ArchivePath = archivePath
	e.completeStep(string(StageArchive))

	e.startStep(string(StageDigest))
	checksum, size, err := FileDigest(archivePath)
	if err != nil {
		return nil, e.failStep(StageDigest, err)
	}
	result.Checksum = checksum
	result.ArchiveSize = size
	e.completeStep(string(StageDigest))
	e.log.Infow("archive ready", "path", archivePath, "size", size, "sha256", checksum)

	if e.cfg.Bucket == "" {
		return result, nil
	}

	e.startStep(string(StageUploadArchive))
	if err := e.uploader.UploadFile(ctx, archiveName, archivePath, &storage.UploadOptions{
		ContentType: constants.ArchiveContentType,
		ACL:         constants.BucketOwnerFullControlACL,
	}); err != nil {
		return nil, e.failStep(StageUploadArchive, err)
	}
	e.completeStep(string(StageUploadArchive))

	manifest := &Manifest{
		BlockHeight: bounds.Stop,
		Checksum:    checksum,
		FileName:    archiveName,
		FileSize:    size,
		Timestamp:   timestamp,
	}
	manifestPath := filepath.Join(workingDir, constants.ManifestFileName)
	if err := WriteManifest(manifestPath, manifest); err != nil {
		return nil, &StageError{Stage: StageWriteManifest, Err: err}
	}
	result.ManifestPath = manifestPath

	e.startStep(string(StageUploadManifest))
	if err := e.uploader.UploadFile(ctx, constants.ManifestFileName, manifestPath, &storage.UploadOptions{
		ContentType: constants.ManifestContentType,
		ACL:         constants.BucketOwnerFullControlACL,
	}); err != nil {
		// The archive is already live in the bucket at this point. The
		// job still fails; the stale manifest window is accepted.
		return nil, e.failStep(StageUploadManifest, err)
	}
	e.completeStep(string(StageUploadManifest))
	result.Published = true

	if ephemeral {
		if err := os.RemoveAll(workingDir); err != nil {
			e.log.Warnw("failed to remove temp working directory", "dir", workingDir, "err", err)
		} else {
			result.WorkingDir = ""
		}
	}
	return result, nil
}

// prepareDir resolves the working directory and creates an empty blocks
// directory under it. A caller-supplied directory is kept afterwards, a
// temp directory is removed once the snapshot is published.
func (e *Exporter) prepareDir() (string, bool, error) {
	workingDir := e.cfg.WorkingDir
	ephemeral := false
	if workingDir == "" {
		dir, err := os.MkdirTemp("", "ironfish-snapshot-")
		if err != nil {
			return "", false, fmt.Errorf("failed to create temp directory: %w", err)
		}
		workingDir = dir
		ephemeral = true
	} else if err := os.MkdirAll(workingDir, constants.DefaultPerms755); err != nil {
		return "", false, fmt.Errorf("failed to create working directory: %w", err)
	}

	blocksDir := filepath.Join(workingDir, constants.BlocksDirName)
	if err := os.MkdirAll(blocksDir, constants.DefaultPerms755); err != nil {
		return "", false, fmt.Errorf("failed to create blocks directory: %w", err)
	}
	entries, err := os.ReadDir(blocksDir)
	if err != nil {
		return "", false, err
	}
	if len(entries) > 0 {
		return "", false, fmt.Errorf("blocks directory %s is not empty", blocksDir)
	}
	return workingDir, ephemeral, nil
}

func (e *Exporter) startStep(name string) {
	if e.tracker != nil {
		e.tracker.StartStep(name)
	}
}

func (e *Exporter) completeStep(name string) {
	if e.tracker != nil {
		e.tracker.CompleteStep(name)
	}
}

func (e *Exporter) failStep(stage Stage, err error) error {
	if e.tracker != nil {
		e.tracker.FailStep(string(stage), err)
	}
	return &StageError{Stage: stage, Err: err}
}
