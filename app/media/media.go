package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/streamhub-io/streamhub/config"
)

// ObjectStore abstracts the media storage operations the video and user
// services need. The minio client satisfies it in production; tests use a
// mock.
type ObjectStore interface {
	UploadVideo(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	UploadAvatar(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	DeleteVideo(ctx context.Context, objectName string) error
	DeleteAvatar(ctx context.Context, objectName string) error
}

var _ ObjectStore = (*Storage)(nil)

// Storage provides object storage for video files and avatars, one bucket
// per media kind.
type Storage struct {
	client        *minio.Client
	videoBucket   string
	avatarBucket  string
	publicBaseURL string
}

// New creates a storage client and ensures both buckets exist.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	for _, bucket := range []string{cfg.VideoBucket, cfg.AvatarBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %q: %w", bucket, err)
			}
		}
	}

	return &Storage{
		client:        client,
		videoBucket:   cfg.VideoBucket,
		avatarBucket:  cfg.AvatarBucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// UploadVideo stores a video object and returns its public URL.
func (s *Storage) UploadVideo(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.upload(ctx, s.videoBucket, objectName, reader, size, contentType)
}

// UploadAvatar stores an avatar image and returns its public URL.
func (s *Storage) UploadAvatar(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.upload(ctx, s.avatarBucket, objectName, reader, size, contentType)
}

func (s *Storage) upload(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, objectName), nil
}

func (s *Storage) DeleteVideo(ctx context.Context, objectName string) error {
	return s.delete(ctx, s.videoBucket, objectName)
}

func (s *Storage) DeleteAvatar(ctx context.Context, objectName string) error {
	return s.delete(ctx, s.avatarBucket, objectName)
}

func (s *Storage) delete(ctx context.Context, bucket, objectName string) error {
	if err := s.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ObjectKeyFromURL recovers the object name from a stored media URL.
// Upload returns flat keys under the bucket, so the last path segment is
// the key. Returns "" when the URL carries no usable path.
func ObjectKeyFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	key := path.Base(rawURL)
	if key == "." || key == "/" {
		return ""
	}
	return key
}

// ContentTypeForFile returns the MIME type for an uploaded filename.
func ContentTypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// IsVideoContentType reports whether the MIME type is an accepted video
// upload format.
func IsVideoContentType(contentType string) bool {
	switch contentType {
	case "video/mp4", "video/quicktime", "video/x-msvideo", "video/x-matroska", "video/webm":
		return true
	}
	return false
}

// IsImageContentType reports whether the MIME type is an accepted avatar
// upload format.
func IsImageContentType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
