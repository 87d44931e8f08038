package storage

import (
	"io"
	"time"
)

// StorageProvider defines the behavior for any object-storage backend.
// ttl, when non-zero, asks the backend to attach shorter-lived retention
// metadata to the object (an S3 Expires header, a local sidecar file) —
// used for temporary chunk uploads as opposed to final artifacts, which
// pass a zero ttl and are kept indefinitely.
type StorageProvider interface {
	Put(bucket, key string, body io.ReadSeeker, contentType string, ttl time.Duration) error
	Delete(bucket, key string) error
	Exists(bucket, key string) (bool, error)
}
