// Package storage stores generated files (shipping labels) on a local
// directory or an S3-compatible bucket.
//
//	storage.Connect()
//	disk := storage.Default()
//	_ = disk.Put(ctx, "labels/1234567890.pdf", pdf)
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when the object is missing.
var ErrNotExist = errors.New("storage: object does not exist")

// Disk is a flat key/value file store. Paths use forward slashes.
type Disk interface {
	Put(ctx context.Context, path string, content []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// URL returns the public URL for path (meaningful for public disks / S3).
	URL(path string) string
}
