// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.
package constants

import (
	"time"
)

const (
	DefaultPerms755    = 0o755
	WriteReadReadPerms = 0o644

	BaseDirName = ".snapshotter"
	LogDir      = "logs"
	LogFileName = "snapshotter.log"

	SnapshotsDirName = "snapshots"
	BlocksDirName    = "blocks"
	ManifestFileName = "manifest.json"

	// ArchivePrefix and ArchiveSuffix bracket the epoch-millis timestamp in
	// the archive file name, e.g. ironfish_snapshot_1700000000000.tar.gz
	ArchivePrefix = "ironfish_snapshot_"
	ArchiveSuffix = ".tar.gz"

	ArchiveContentType  = "application/gzip"
	ManifestContentType = "application/json"

	// BucketOwnerFullControlACL is requested on every published object so the
	// bucket owner keeps control of snapshots uploaded from foreign accounts
	BucketOwnerFullControlACL = "bucket-owner-full-control"

	DefaultMaxBlocksPerChunk = 1000
	DefaultNodeAddress       = "127.0.0.1:8020"

	NodeDialTimeout = 30 * time.Second

	// config keys, settable via file, SNAPSHOTTER_* env, or flags
	ConfigBucketKey            = "bucket"
	ConfigPathKey              = "path"
	ConfigMaxBlocksPerChunkKey = "max-blocks-per-chunk"
	ConfigNodeAddressKey       = "node"
	ConfigUploadBackendKey     = "upload-backend"
	ConfigRegionKey            = "region"

	UploadBackendPut = "put"
	UploadBackendS3  = "s3"

	EnvPrefix = "SNAPSHOTTER"
)
