package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oszuidwest/zwfm-imageproxy/internal/config"
)

// S3Store is an S3-compatible cache backend. It survives restarts and can
// be shared between replicas; entries are gob-encoded response snapshots.
// S3 has no native per-object TTL, so expiry is enforced on read and stale
// objects are pruned by the scheduled cleanup job.
type S3Store struct {
	tm     *transfermanager.Client
	client *s3.Client
	bucket string
	prefix string
	ttl    time.Duration
}

// NewS3Store creates an S3-backed cache store.
func NewS3Store(cfg *config.S3Config, ttl time.Duration) *S3Store {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: ptrOrNil(cfg.Endpoint),
		UsePathStyle: cfg.ForcePathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})

	slog.Info("S3 cache backend enabled",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"prefix", cfg.GetPathPrefix(),
		"ttl", ttl)

	return &S3Store{
		tm:     transfermanager.New(client),
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.GetPathPrefix(),
		ttl:    ttl,
	}
}

// ptrOrNil returns nil for empty strings, otherwise a pointer to the string.
func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// objectKey hashes the cache key into a flat, URL-safe object name.
func (s *S3Store) objectKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + hex.EncodeToString(sum[:]) + ".bin"
}

// Get implements Store. Errors and expired entries are cache misses.
func (s *S3Store) Get(ctx context.Context, key string) (*Entry, bool) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, false
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			slog.Debug("Failed to close S3 object body", "error", err)
		}
	}()

	var entry Entry
	if err := gob.NewDecoder(out.Body).Decode(&entry); err != nil {
		slog.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}

	if time.Since(entry.StoredAt) > s.ttl {
		return nil, false
	}

	return &entry, true
}

// Set implements Store.
func (s *S3Store) Set(ctx context.Context, key string, entry *Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return err
	}

	_, err := s.tm.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	return err
}

// CleanupExpired deletes cache objects older than the TTL. Invoked by the
// cron scheduler; safe to run concurrently with reads since expired entries
// are already treated as misses.
func (s *S3Store) CleanupExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-s.ttl)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: ptrOrNil(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}

		for _, obj := range page.Contents {
			if obj.LastModified == nil || obj.LastModified.After(cutoff) {
				continue
			}

			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				slog.Warn("Failed to delete expired cache object", "key", aws.ToString(obj.Key), "error", err)
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		slog.Info("Expired cache objects pruned", "deleted", deleted)
	}

	return nil
}
