// Package backup mirrors published archives to S3-compatible object storage.
// It is a secondary copy, never the primary read path: pkg/blobstore's
// filesystem store is authoritative and this is the off-site backup target.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config configures the S3-compatible mirror target.
type Config struct {
	Endpoint     string // empty selects AWS's default endpoint
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool // required for MinIO and most non-AWS S3-compatible stores
}

// Mirror uploads, verifies, and deletes archive copies in S3-compatible
// storage, keyed the same way as the local blob store:
// packages/<owner>/<repo>/<tag>.zpkg.
type Mirror struct {
	client *s3.Client
	bucket string
}

// NewMirror connects to the configured bucket, creating it if missing (for
// local MinIO-backed development).
func NewMirror(ctx context.Context, cfg Config) (*Mirror, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsConfig, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("backup: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("backup: ensure bucket: %w", err)
	}
	return &Mirror{client: client, bucket: cfg.Bucket}, nil
}

func blobKey(owner, repo, tag string) string {
	return fmt.Sprintf("packages/%s/%s/%s.zpkg", owner, repo, tag)
}

// Upload mirrors one archive, tagging the object with its SHA-256 checksum
// for later verification. Re-uploading the same (owner, repo, tag) with the
// same bytes is a no-op.
func (m *Mirror) Upload(ctx context.Context, owner, repo, tag string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("backup: read archive: %w", err)
	}
	key := blobKey(owner, repo, tag)

	exists, err := m.Exists(ctx, owner, repo, tag)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	sum := sha256.Sum256(data)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    map[string]string{"checksum-sha256": hex.EncodeToString(sum[:])},
	})
	if err != nil {
		return fmt.Errorf("backup: upload %s: %w", key, err)
	}
	return nil
}

// Download retrieves the mirrored archive.
func (m *Mirror) Download(ctx context.Context, owner, repo, tag string) (io.ReadCloser, error) {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(blobKey(owner, repo, tag)),
	})
	if err != nil {
		return nil, fmt.Errorf("backup: download %s/%s@%s: %w", owner, repo, tag, err)
	}
	return result.Body, nil
}

// Exists reports whether a mirrored copy is present.
func (m *Mirror) Exists(ctx context.Context, owner, repo, tag string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(blobKey(owner, repo, tag)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("backup: head %s/%s@%s: %w", owner, repo, tag, err)
	}
	return true, nil
}

// Delete removes a mirrored copy, best-effort (mirrors release deletion;
// failures here never block the catalog/blob-store mutation).
func (m *Mirror) Delete(ctx context.Context, owner, repo, tag string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(blobKey(owner, repo, tag)),
	})
	if err != nil {
		return fmt.Errorf("backup: delete %s/%s@%s: %w", owner, repo, tag, err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (m *Mirror) HealthCheck(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	if err != nil {
		return fmt.Errorf("backup: health check: %w", err)
	}
	return nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey"))
}

func isBucketAlreadyExistsError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "BucketAlreadyExists") || strings.Contains(err.Error(), "BucketAlreadyOwnedByYou"))
}
