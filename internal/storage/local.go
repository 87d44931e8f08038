package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalProvider simulates buckets as subdirectories of RootPath. Used for
// the "local" storage provider and by tests that don't want to hit real AWS
// endpoints.
type LocalProvider struct {
	RootPath string
}

func NewLocalProvider(root string) *LocalProvider {
	_ = os.MkdirAll(root, 0o755)
	return &LocalProvider{RootPath: root}
}

// Put writes body to RootPath/bucket/key. A non-zero ttl also drops a
// "<key>.expires" sidecar file next to it, holding the RFC 3339 expiry
// timestamp — there's no background reaper here, but the sidecar lets an
// out-of-band job (or a future one) know the file is disposable.
func (l *LocalProvider) Put(bucket, key string, body io.ReadSeeker, contentType string, ttl time.Duration) error {
	path := filepath.Join(l.RootPath, bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return err
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl).Format(time.RFC3339)
		if err := os.WriteFile(path+".expires", []byte(expires), 0o644); err != nil {
			return fmt.Errorf("storage: write expiry sidecar for %s: %w", path, err)
		}
	}
	return nil
}

// Delete removes the object and its expiry sidecar, if any. A missing
// object is treated as success, matching S3Provider's not-found handling —
// the desired end state already holds.
func (l *LocalProvider) Delete(bucket, key string) error {
	path := filepath.Join(l.RootPath, bucket, key)
	os.Remove(path + ".expires")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LocalProvider) Exists(bucket, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.RootPath, bucket, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
