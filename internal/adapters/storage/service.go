// Package storage provides S3-compatible object storage for archived
// profile snapshots.
package storage

import (
	"context"
)

// StorageService defines the object storage operations used by the service.
type StorageService interface {
	// PutBytes writes data under key, replacing any existing object.
	PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
