package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"learnhub/backend/config"
)

// ImageExtensions is the allow-list for profile images and course thumbnails.
// Lesson videos and assignments accept any content type.
var ImageExtensions = []string{"png", "jpg", "jpeg", "gif"}

const DefaultPresignExpiry = 24 * time.Hour

// MediaStore holds object-storage references by name. It is constructed once
// at startup and passed to the controllers that need it; there is no global
// client. A store without a configured endpoint runs disabled: uploads fail,
// presigns yield no URL, deletes succeed.
type MediaStore struct {
	log    *log.Logger
	client *minio.Client
	bucket string
}

func NewMediaStore(cfg *config.Config, logger *log.Logger) (*MediaStore, error) {
	if cfg.MinioEndpoint == "" {
		logger.Println("MINIO_ENDPOINT not configured, media store disabled")
		return &MediaStore{log: logger}, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("could not check bucket %q: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("could not create bucket %q: %w", cfg.MinioBucket, err)
		}
		logger.Printf("Bucket %q created", cfg.MinioBucket)
	}

	return &MediaStore{log: logger, client: client, bucket: cfg.MinioBucket}, nil
}

func (m *MediaStore) Enabled() bool {
	return m.client != nil
}

// Upload stores the file under a collision-resistant unique name below
// prefix and returns that name. Existing objects are never overwritten.
// allowedExts nil means any extension is accepted.
func (m *MediaStore) Upload(ctx context.Context, r io.Reader, size int64, originalName, contentType, prefix string, allowedExts []string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if allowedExts != nil {
		allowed := false
		for _, e := range allowedExts {
			if ext == e {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("file type %q is not allowed", ext)
		}
	}

	if !m.Enabled() {
		return "", fmt.Errorf("media store is not available")
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s_%s", prefix, newObjectID(), sanitizeFilename(originalName))

	_, err := m.client.PutObject(ctx, m.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		m.log.Printf("Error uploading %q: %v", objectName, err)
		return "", fmt.Errorf("failed to upload %s to storage", originalName)
	}

	return objectName, nil
}

// PresignedURL returns a time-limited access URL for the object, or "" when
// the name is empty or the store is unavailable. It never fails the caller.
func (m *MediaStore) PresignedURL(objectName string, expiry time.Duration) string {
	if objectName == "" || !m.Enabled() {
		return ""
	}
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, url.Values{})
	if err != nil {
		m.log.Printf("Error generating presigned URL for %q: %v", objectName, err)
		return ""
	}
	return u.String()
}

// Delete removes the object. A missing object counts as success.
func (m *MediaStore) Delete(objectName string) bool {
	if objectName == "" {
		return false
	}
	if !m.Enabled() {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return true
		}
		m.log.Printf("Error deleting %q: %v", objectName, err)
		return false
	}
	return true
}

// VideoDuration probes an MP4 stream and returns its duration in whole
// seconds, best-effort: 0 when the container cannot be read. The reader is
// rewound afterwards so the same stream can still be uploaded.
func (m *MediaStore) VideoDuration(r io.ReadSeeker) int {
	info, err := mp4.Probe(r)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		m.log.Printf("Error rewinding video stream after probe: %v", seekErr)
	}
	if err != nil {
		m.log.Printf("Could not determine video duration: %v", err)
		return 0
	}
	if info.Timescale == 0 {
		return 0
	}
	return int(info.Duration / uint64(info.Timescale))
}

func newObjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// sanitizeFilename keeps the base name restricted to a safe character set.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || strings.Trim(b.String(), "._") == "" {
		return "uploaded_file"
	}
	return b.String()
}
