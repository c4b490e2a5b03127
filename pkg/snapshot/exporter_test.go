// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iron-fish/snapshotter/internal/testutils"
	"github.com/iron-fish/snapshotter/pkg/archive"
	"github.com/iron-fish/snapshotter/pkg/cloud/storage"
	"github.com/iron-fish/snapshotter/pkg/constants"
)

// recordingUploader captures uploads in order and can fail a given key.
type recordingUploader struct {
	keys    []string
	files   map[string]string
	failKey string
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{files: map[string]string{}}
}

func (u *recordingUploader) UploadFile(_ context.Context, key string, localPath string, _ *storage.UploadOptions) error {
	if key == u.failKey {
		return errors.New("injected upload failure")
	}
	u.keys = append(u.keys, key)
	u.files[key] = localPath
	return nil
}

func startNode(t *testing.T) *testutils.FakeNode {
	t.Helper()
	node, err := testutils.StartFakeNode(10, 12, []testutils.FakeRecord{
		{Sequence: 10, Payload: []byte("A")},
		{Sequence: 11, Payload: []byte("B")},
		{Sequence: 12, Payload: []byte("C")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return node
}

func newTestExporter(t *testing.T, cfg ExportConfig) *Exporter {
	t.Helper()
	e, err := NewExporter(cfg, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	e.SetBuilder(&archive.GzipBuilder{})
	return e
}

func TestExportWithoutBucket(t *testing.T) {
	require := require.New(t)

	node := startNode(t)
	workingDir := t.TempDir()
	uploader := newRecordingUploader()

	e := newTestExporter(t, ExportConfig{
		NodeAddress:       node.Addr(),
		WorkingDir:        workingDir,
		MaxBlocksPerChunk: 1000,
	})
	e.SetUploader(uploader)

	result, err := e.Export(context.Background())
	require.NoError(err)

	// blocks on disk
	for _, seq := range []string{"10", "11", "12"} {
		require.FileExists(filepath.Join(workingDir, constants.BlocksDirName, seq))
	}

	// archive exists under the working dir with the expected name shape
	require.Equal(workingDir, filepath.Dir(result.ArchivePath))
	base := filepath.Base(result.ArchivePath)
	require.True(strings.HasPrefix(base, constants.ArchivePrefix))
	require.True(strings.HasSuffix(base, constants.ArchiveSuffix))

	// digest matches an independent recomputation
	checksum, size, err := FileDigest(result.ArchivePath)
	require.NoError(err)
	require.Equal(checksum, result.Checksum)
	require.Equal(size, result.ArchiveSize)

	// no bucket: nothing uploaded, no manifest written
	require.False(result.Published)
	require.Empty(uploader.keys)
	require.NoFileExists(filepath.Join(workingDir, constants.ManifestFileName))
}

func TestExportPublishes(t *testing.T) {
	require := require.New(t)

	node := startNode(t)
	workingDir := t.TempDir()
	uploader := newRecordingUploader()

	e := newTestExporter(t, ExportConfig{
		NodeAddress:       node.Addr(),
		WorkingDir:        workingDir,
		Bucket:            "snapshots.example.net",
		MaxBlocksPerChunk: 1000,
	})
	e.SetUploader(uploader)

	result, err := e.Export(context.Background())
	require.NoError(err)
	require.True(result.Published)

	// archive strictly before manifest
	require.Len(uploader.keys, 2)
	require.Equal(filepath.Base(result.ArchivePath), uploader.keys[0])
	require.Equal(constants.ManifestFileName, uploader.keys[1])

	manifest, err := ReadManifest(result.ManifestPath)
	require.NoError(err)
	require.Equal(uint64(12), manifest.BlockHeight)
	require.Equal(result.Checksum, manifest.Checksum)
	require.Equal(result.ArchiveSize, manifest.FileSize)
	require.Equal(filepath.Base(result.ArchivePath), manifest.FileName)

	// manifest timestamp matches the one embedded in the archive name
	require.Contains(manifest.FileName, fmt.Sprintf("%d", manifest.Timestamp))
}

func TestExportArchiveUploadFailure(t *testing.T) {
	require := require.New(t)

	node := startNode(t)
	workingDir := t.TempDir()

	e := newTestExporter(t, ExportConfig{
		NodeAddress:       node.Addr(),
		WorkingDir:        workingDir,
		Bucket:            "snapshots.example.net",
		MaxBlocksPerChunk: 1000,
	})
	// the archive key embeds a timestamp, so fail by position instead
	uploader := newRecordingUploader()
	e.SetUploader(&failFirstUploader{inner: uploader})

	_, err := e.Export(context.Background())
	require.Error(err)

	var stageErr *StageError
	require.ErrorAs(err, &stageErr)
	require.Equal(StageUploadArchive, stageErr.Stage)

	// no manifest may be written or uploaded after an archive upload failure
	require.NoFileExists(filepath.Join(workingDir, constants.ManifestFileName))
	require.Empty(uploader.keys)
}

// failFirstUploader fails the first upload it sees and records nothing.
type failFirstUploader struct {
	inner *recordingUploader
	calls int
}

func (u *failFirstUploader) UploadFile(ctx context.Context, key string, localPath string, opts *storage.UploadOptions) error {
	u.calls++
	if u.calls == 1 {
		return errors.New("injected archive upload failure")
	}
	return u.inner.UploadFile(ctx, key, localPath, opts)
}

func TestExportManifestUploadFailure(t *testing.T) {
	require := require.New(t)

	node := startNode(t)
	workingDir := t.TempDir()
	uploader := newRecordingUploader()
	uploader.failKey = constants.ManifestFileName

	e := newTestExporter(t, ExportConfig{
		NodeAddress:       node.Addr(),
		WorkingDir:        workingDir,
		Bucket:            "snapshots.example.net",
		MaxBlocksPerChunk: 1000,
	})
	e.SetUploader(uploader)

	_, err := e.Export(context.Background())
	require.Error(err)

	var stageErr *StageError
	require.ErrorAs(err, &stageErr)
	require.Equal(StageUploadManifest, stageErr.Stage)

	// the archive went out before the failure; that inconsistency is the
	// documented behavior
	require.Len(uploader.keys, 1)
}

func TestExportTruncatedStreamFailsBeforeArchive(t *testing.T) {
	require := require.New(t)

	node, err := testutils.StartTruncatedFakeNode(10, 12, []testutils.FakeRecord{
		{Sequence: 10, Payload: []byte("A")},
	}, 1)
	require.NoError(err)
	defer node.Close()

	workingDir := t.TempDir()
	e := newTestExporter(t, ExportConfig{
		NodeAddress:       node.Addr(),
		WorkingDir:        workingDir,
		MaxBlocksPerChunk: 1000,
	})

	_, err = e.Export(context.Background())
	require.Error(err)

	var stageErr *StageError
	require.ErrorAs(err, &stageErr)
	require.Equal(StageStream, stageErr.Stage)

	// an incomplete snapshot must never be archived
	matches, err := filepath.Glob(filepath.Join(workingDir, constants.ArchivePrefix+"*"))
	require.NoError(err)
	require.Empty(matches)
	// the partial blocks are left in place for inspection
	require.FileExists(filepath.Join(workingDir, constants.BlocksDirName, "10"))
}

func TestExportRejectsDirtyBlocksDir(t *testing.T) {
	require := require.New(t)

	workingDir := t.TempDir()
	blocksDir := filepath.Join(workingDir, constants.BlocksDirName)
	require.NoError(os.MkdirAll(blocksDir, 0o755))
	require.NoError(os.WriteFile(filepath.Join(blocksDir, "1"), []byte("stale"), 0o644))

	e := newTestExporter(t, ExportConfig{
		NodeAddress: "127.0.0.1:1",
		WorkingDir:  workingDir,
	})
	_, err := e.Export(context.Background())

	var stageErr *StageError
	require.ErrorAs(err, &stageErr)
	require.Equal(StagePrepare, stageErr.Stage)
}
