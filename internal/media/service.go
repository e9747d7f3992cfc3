// Package media handles image uploads for listings, posts, and avatars
// via S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"investlocal/api/internal/util"
)

// Config holds object storage configuration.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service issues presigned upload URLs and resolves public object URLs.
type Service struct {
	client *minio.Client
	config Config
}

// allowed content types for uploads, mapped to object key extensions.
var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// NewService creates a media service. Returns nil (no error) if the
// endpoint is not configured; callers should treat a nil service as
// uploads-disabled.
func NewService(cfg Config) (*Service, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &Service{client: client, config: cfg}, nil
}

// EnsureBucket creates the media bucket if it does not exist and applies
// a public-read policy so object URLs can be embedded directly.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.config.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}]
	}`, s.config.Bucket)
	if err := s.client.SetBucketPolicy(ctx, s.config.Bucket, policy); err != nil {
		log.Printf("media: set bucket policy: %v", err)
	}
	return nil
}

// Upload describes a presigned upload grant.
type Upload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectURL string `json:"objectUrl"`
	ExpiresIn int    `json:"expiresIn"`
}

// PresignUpload returns a presigned PUT URL for a new object under the
// given kind prefix ("listings", "posts", "avatars"). The caller uploads
// directly to object storage and then stores ObjectURL.
func (s *Service) PresignUpload(ctx context.Context, kind, userID, contentType string) (Upload, error) {
	ext, ok := contentTypeExt[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return Upload{}, fmt.Errorf("unsupported content type %q", contentType)
	}

	switch kind {
	case "listings", "posts", "avatars":
	default:
		return Upload{}, fmt.Errorf("unsupported upload kind %q", kind)
	}

	objectName := fmt.Sprintf("%s/%s/%s%s", kind, userID, util.NewID("img"), ext)

	expiry := 15 * time.Minute
	presigned, err := s.client.PresignedPutObject(ctx, s.config.Bucket, objectName, expiry)
	if err != nil {
		return Upload{}, fmt.Errorf("presign upload: %w", err)
	}

	return Upload{
		UploadURL: presigned.String(),
		ObjectURL: s.objectURL(objectName),
		ExpiresIn: int(expiry.Seconds()),
	}, nil
}

// RemoveObject deletes an object given its public URL. Unknown URLs are
// ignored so callers can pass through externally hosted images.
func (s *Service) RemoveObject(ctx context.Context, objectURL string) error {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return nil
	}
	prefix := "/" + s.config.Bucket + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return nil
	}
	objectName := strings.TrimPrefix(parsed.Path, prefix)
	if err := s.client.RemoveObject(ctx, s.config.Bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *Service) objectURL(objectName string) string {
	scheme := "http"
	if s.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.config.Endpoint, s.config.Bucket, objectName)
}
