// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipBuilder writes the tar.gz in-process. Entry names are prefixed with
// the source directory's base name so the layout matches the tar binary's
// output for the same arguments.
type GzipBuilder struct{}

func (*GzipBuilder) Archive(ctx context.Context, srcDir string, dstFile string, excludes []string) error {
	if err := os.MkdirAll(filepath.Dir(dstFile), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	root := filepath.Base(srcDir)

	return filepath.Walk(srcDir, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, file)
		if err != nil {
			return err
		}

		if excluded(relPath, excludes) {
			if fi.IsDir() && relPath != "." {
				return filepath.SkipDir
			}
			if relPath != "." {
				return nil
			}
		}

		header, err := tar.FileInfoHeader(fi, file)
		if err != nil {
			return err
		}
		if relPath == "." {
			header.Name = root
		} else {
			header.Name = filepath.Join(root, relPath)
		}
		header.Name = strings.ReplaceAll(header.Name, "\\", "/")
		if fi.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		return nil
	})
}

// excluded mirrors tar's --exclude: a pattern matches the entry's base
// name or its path relative to the archived directory.
func excluded(relPath string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, _ := filepath.Match(pattern, filepath.Base(relPath)); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}
