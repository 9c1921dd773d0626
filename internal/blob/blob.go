// Package blob wraps the S3-compatible object store holding uploaded chat
// attachments.
//
// Object keys follow the ownership convention "<userID>/<fileID>": every
// handler checks [OwnedBy] against the authenticated identity before any
// blob or cache access. The cache layer itself never re-validates ownership.
//
// Presigned GET URLs are minted with a validity window equal to
// filecache.TTL — a cached entry and the URL it was fetched through expire
// together, so a cache hit never needs fresh credentials.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/quillchat/quill/internal/filecache"
	"github.com/quillchat/quill/internal/log"
)

// ErrNotFound indicates the object does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// SignedURLTTL is the presigned GET URL validity window. Kept equal to the
// cache entry lifetime on purpose; see the filecache package doc.
const SignedURLTTL = filecache.TTL

// Config holds blob store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectInfo is the subset of object metadata the refill path needs.
type ObjectInfo struct {
	Size        int64
	ContentType string
	UploadedAt  time.Time
}

// Store is a thin client over one bucket.
type Store struct {
	client *minio.Client
	bucket string
	logger log.Logger
}

// New creates a Store. It does not touch the network; call EnsureBucket
// during startup to verify connectivity.
func New(cfg Config, logger log.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("created blob bucket", "bucket", s.bucket)
	return nil
}

// SignedURL issues a presigned GET URL for path, valid for SignedURLTTL.
func (s *Store) SignedURL(ctx context.Context, path string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, SignedURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presigning %q: %w", path, err)
	}
	return u.String(), nil
}

// Stat returns metadata for the object at path, or ErrNotFound.
func (s *Store) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return ObjectInfo{}, fmt.Errorf("stat %q: %w", path, err)
	}
	return ObjectInfo{
		Size:        info.Size,
		ContentType: info.ContentType,
		UploadedAt:  info.LastModified,
	}, nil
}

// Upload stores content at path. size may be -1 for unknown length.
func (s *Store) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading %q: %w", path, err)
	}
	s.logger.Debug("uploaded object", "path", path, "size", size, "content_type", contentType)
	return nil
}

// Remove deletes the object at path. Removing an absent object is not an
// error at this layer; minio treats it as a successful delete.
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing %q: %w", path, err)
	}
	s.logger.Debug("removed object", "path", path)
	return nil
}

// ObjectPath renders the storage path for a user's file.
func ObjectPath(userID, fileID string) string {
	return userID + "/" + fileID
}

// OwnedBy reports whether path belongs to userID under the
// "<userID>/<fileID>" convention. Empty identifiers and traversal-looking
// paths never match.
func OwnedBy(path, userID string) bool {
	if userID == "" || strings.Contains(path, "..") {
		return false
	}
	return strings.HasPrefix(path, userID+"/") && len(path) > len(userID)+1
}

// FileID extracts the file segment of a storage path, or "" if the path
// does not follow the convention.
func FileID(path string) string {
	_, file, ok := strings.Cut(path, "/")
	if !ok {
		return ""
	}
	return file
}
