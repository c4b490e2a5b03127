// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDigest(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	content := []byte("not actually a tarball, the hasher does not care")
	require.NoError(os.WriteFile(path, content, 0o644))

	checksum, size, err := FileDigest(path)
	require.NoError(err)
	require.Equal(int64(len(content)), size)

	want := sha256.Sum256(content)
	require.Equal(hex.EncodeToString(want[:]), checksum)
	require.Len(checksum, 64)
}

func TestFileDigestIdempotent(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	require.NoError(os.WriteFile(path, make([]byte, 3*digestChunkSize+17), 0o644))

	first, firstSize, err := FileDigest(path)
	require.NoError(err)
	second, secondSize, err := FileDigest(path)
	require.NoError(err)
	require.Equal(first, second)
	require.Equal(firstSize, secondSize)
}

func TestFileDigestMissingFile(t *testing.T) {
	_, _, err := FileDigest(filepath.Join(t.TempDir(), "nope.tar.gz"))
	require.Error(t, err)
}
