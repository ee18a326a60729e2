package client

import (
	"context"
	"fmt"
	"io"

	"github.com/benam/api/internal/config"
)

// ArtifactStore defines the object storage operations the pipeline needs.
// Every write is an overwrite keyed by object key.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	UploadFile(ctx context.Context, key, path, contentType string) (string, error)
	Download(ctx context.Context, key, dst string) error
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// NewArtifactStore builds the driver selected by cfg.Driver.
func NewArtifactStore(cfg *config.StorageConfig) (ArtifactStore, error) {
	switch cfg.Driver {
	case "", "s3":
		return NewS3Client(cfg)
	case "minio":
		return NewMinioClient(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ContentTypeFor maps an artifact extension to its MIME type.
func ContentTypeFor(ext string) string {
	switch ext {
	case "mp3":
		return "audio/mpeg"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webm":
		return "audio/webm"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func publicURL(base, fallbackHost, key string) string {
	if base != "" {
		return fmt.Sprintf("%s/%s", base, key)
	}
	return fmt.Sprintf("https://%s/%s", fallbackHost, key)
}
