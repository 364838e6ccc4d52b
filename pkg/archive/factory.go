package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StoreType selects the archive backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// NewStoreFromEnv builds an archive store from the environment:
//
//   - ARCHIVE_STORE: "fs" (default), "s3", or "gcs"
//   - DATA_DIR: base directory for the filesystem store (default "data")
//
// For S3:
//   - ARCHIVE_S3_BUCKET (required)
//   - ARCHIVE_S3_REGION or AWS_REGION
//   - ARCHIVE_S3_ENDPOINT (optional, MinIO/LocalStack)
//   - ARCHIVE_S3_PREFIX (optional)
//
// For GCS (requires the gcp build tag):
//   - ARCHIVE_GCS_BUCKET (required)
//   - ARCHIVE_GCS_PREFIX (optional)
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	storeType := StoreType(os.Getenv("ARCHIVE_STORE"))
	if storeType == "" {
		storeType = StoreTypeFS
	}

	switch storeType {
	case StoreTypeFS:
		return newFileStoreFromEnv()
	case StoreTypeS3:
		return newS3StoreFromEnv(ctx)
	case StoreTypeGCS:
		return newGCSStoreFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported archive store type: %s", storeType)
	}
}

func newFileStoreFromEnv() (Store, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	return NewFileStore(filepath.Join(dataDir, "archive"))
}

func newS3StoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_S3_BUCKET is required for S3 archive storage")
	}

	region := os.Getenv("ARCHIVE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Store(ctx, S3StoreConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
	})
}
