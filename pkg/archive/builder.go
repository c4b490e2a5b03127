// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

// Package archive packs a directory of block files into a single gzip
// compressed tarball. The system tar binary is the preferred writer since
// it is authoritative for the format; an in-process builder covers hosts
// without one.
package archive

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Builder produces dstFile, a tar.gz whose single top-level entry is the
// base name of srcDir.
type Builder interface {
	Archive(ctx context.Context, srcDir string, dstFile string, excludes []string) error
}

// NewBuilder returns the tar-invoking builder when the system has tar on
// PATH, falling back to the in-process writer otherwise.
func NewBuilder() Builder {
	if path, err := exec.LookPath("tar"); err == nil {
		return &TarBuilder{TarPath: path}
	}
	return &GzipBuilder{}
}

// TarBuilder shells out to the system tar.
type TarBuilder struct {
	TarPath string
}

// Archive runs tar -czf dst [--exclude p]... -C <parent(src)> <base(src)>.
// Rooting the archive at the parent directory keeps entry names relative,
// so the tarball contains a top-level blocks/ directory instead of an
// absolute path. Exclude patterns go before the positional entry name.
func (b *TarBuilder) Archive(ctx context.Context, srcDir string, dstFile string, excludes []string) error {
	args := []string{"-czf", dstFile}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, "-C", filepath.Dir(srcDir), filepath.Base(srcDir))

	cmd := exec.CommandContext(ctx, b.TarPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &TarError{Args: args, Output: string(out), Err: err}
	}
	return nil
}

// TarError reports a failed tar invocation along with its combined output.
type TarError struct {
	Args   []string
	Output string
	Err    error
}

func (e *TarError) Error() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return fmt.Sprintf("tar failed: %v: %s", e.Err, out)
	}
	return fmt.Sprintf("tar failed: %v", e.Err)
}

func (e *TarError) Unwrap() error {
	return e.Err
}
