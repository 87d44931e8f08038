// Package storage is the object-storage collaborator behind
// contracts.Uploader: an S3-compatible backend for production, and a
// filesystem-backed one for local development and tests.
package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/metrics"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Client uploads local files to a named bucket/key, routing through
// whichever StorageProvider was selected at construction. Bucket selection
// between the short-TTL chunk bucket and the video bucket is the caller's
// responsibility — Client itself is bucket-agnostic.
type Client struct {
	backend  StorageProvider
	chunkTTL time.Duration
}

func New(cfg *config.Config) (*Client, error) {
	var backend StorageProvider

	if cfg.Storage.Provider == "local" {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	} else {
		awsCfg := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, fmt.Errorf("storage: new session: %w", err)
		}
		backend = NewS3Provider(sess)
	}

	chunkTTL := time.Duration(cfg.Storage.ChunkTTLHours) * time.Hour

	return &Client{backend: backend, chunkTTL: chunkTTL}, nil
}

var _ contracts.Uploader = (*Client)(nil)

// Upload implements contracts.Uploader. It observes UploadsTotal and
// UploadDuration labeled by artifact kind (opts.Chunk decides the label).
// Chunk uploads get the configured chunk TTL; final artifacts get none.
// A pre-upload Exists check skips the transfer entirely when the object is
// already there, which matters for chunk uploads that get retried after a
// partial pipeline failure.
func (c *Client) Upload(ctx context.Context, localPath, bucket, key string, opts contracts.UploadOptions) error {
	artifact := "final"
	ttl := time.Duration(0)
	if opts.Chunk {
		artifact = "chunk"
		ttl = c.chunkTTL
	}

	exists, err := c.backend.Exists(bucket, key)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(artifact, "error").Inc()
		return fmt.Errorf("storage: check %s/%s: %w", bucket, key, err)
	}
	if exists {
		metrics.UploadsTotal.WithLabelValues(artifact, "skipped").Inc()
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(artifact, "error").Inc()
		return fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	err = c.backend.Put(bucket, key, f, contentType, ttl)
	metrics.UploadDuration.WithLabelValues(artifact).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UploadsTotal.WithLabelValues(artifact, "error").Inc()
		return fmt.Errorf("storage: put %s/%s: %w", bucket, key, err)
	}
	metrics.UploadsTotal.WithLabelValues(artifact, "success").Inc()
	return nil
}

// Delete implements contracts.Uploader, removing an object a later stage
// has made redundant.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	return c.backend.Delete(bucket, key)
}
