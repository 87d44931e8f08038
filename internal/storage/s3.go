package storage

import (
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Provider talks to any S3-compatible endpoint; region/endpoint are
// configured, not hardcoded, to support non-AWS S3-compatible backends.
type S3Provider struct {
	api *s3.S3
}

func NewS3Provider(sess *session.Session) *S3Provider {
	return &S3Provider{api: s3.New(sess)}
}

// Put uploads body under bucket/key. A non-zero ttl sets the object's
// Expires header and a "no-cache" Cache-Control, marking it as short-lived
// so lifecycle policies or downstream caches don't treat it like a final
// artifact.
func (s *S3Provider) Put(bucket, key string, body io.ReadSeeker, contentType string, ttl time.Duration) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if ttl > 0 {
		input.Expires = aws.Time(time.Now().Add(ttl))
		input.CacheControl = aws.String("no-cache")
	}
	_, err := s.api.PutObject(input)
	return err
}

// Delete removes the object. A 404 response is treated as success, since
// the desired end state — the object being gone — already holds; this
// matters for the chunk-cleanup caller, which deletes best-effort and
// shouldn't log a failure for a chunk that was already removed.
func (s *S3Provider) Delete(bucket, key string) error {
	_, err := s.api.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// Exists reports whether the object is present. Only a confirmed 404 is
// treated as "does not exist"; any other error (permissions, network,
// throttling) is surfaced to the caller instead of being folded into a
// false negative, since Client.Upload treats a false Exists as "go ahead
// and upload" and would otherwise mask a real backend problem as a normal
// first-time upload.
func (s *S3Provider) Exists(bucket, key string) (bool, error) {
	_, err := s.api.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	reqErr, ok := err.(awserr.RequestFailure)
	return ok && reqErr.StatusCode() == http.StatusNotFound
}
