// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

// PutUploader publishes objects with a single HTTP PUT per file. The remote
// status code is part of the success signal: anything outside 2xx fails the
// upload.
type PutUploader struct {
	host   string
	client *http.Client

	// BaseURL overrides the default https://<host> endpoint. Useful for
	// S3-compatible stores served on a nonstandard scheme or port.
	BaseURL string
}

// NewPutUploader creates an uploader targeting https://<host>.
func NewPutUploader(host string) *PutUploader {
	return &PutUploader{
		host:   host,
		client: &http.Client{},
	}
}

// UploadFile streams the file at localPath as the request body of
// PUT <base>/<key> with Host, Date (ISO-8601), Content-Type, and the ACL
// header requesting bucket-owner-full-control semantics.
func (u *PutUploader) UploadFile(ctx context.Context, key string, localPath string, opts *UploadOptions) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	base := u.BaseURL
	if base == "" {
		base = "https://" + u.host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/"+key, f)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Host = u.host
	req.Header.Set("Date", time.Now().UTC().Format(time.RFC3339))
	if opts != nil {
		if opts.ContentType != "" {
			req.Header.Set("Content-Type", opts.ContentType)
		}
		if opts.ACL != "" {
			req.Header.Set("x-amz-acl", opts.ACL)
		}
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload of %s returned status %d", key, resp.StatusCode)
	}
	return nil
}
