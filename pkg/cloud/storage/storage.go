// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage provides the bucket upload backends used to publish
// snapshot artifacts. Neither backend retries: a failed upload is a failed
// upload, and the caller decides what that means for the job.
package storage

import (
	"context"
	"fmt"

	"github.com/iron-fish/snapshotter/pkg/constants"
)

// UploadOptions configures upload behavior.
type UploadOptions struct {
	// ContentType for the uploaded object
	ContentType string
	// ACL (e.g., "bucket-owner-full-control")
	ACL string
}

// Uploader transfers local files to a bucket, keyed by object name.
type Uploader interface {
	// UploadFile uploads a local file to the bucket under key.
	UploadFile(ctx context.Context, key string, localPath string, opts *UploadOptions) error
}

// NewUploader selects a backend for the given bucket. The "put" backend
// issues plain signed-style PUT requests against https://<bucket>/<key>;
// the "s3" backend goes through the AWS SDK.
func NewUploader(ctx context.Context, backend string, bucket string, region string) (Uploader, error) {
	switch backend {
	case constants.UploadBackendPut, "":
		return NewPutUploader(bucket), nil
	case constants.UploadBackendS3:
		return NewS3Storage(ctx, &S3Config{Bucket: bucket, Region: region})
	default:
		return nil, fmt.Errorf("unknown upload backend %q", backend)
	}
}
