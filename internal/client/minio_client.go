package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benam/api/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient implements ArtifactStore for self-hosted MinIO.
type MinioClient struct {
	client     *minio.Client
	bucketName string
	publicURL  string
	host       string
}

func NewMinioClient(cfg *config.StorageConfig) (*MinioClient, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioClient{
		client:     client,
		bucketName: cfg.BucketName,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		host:       endpoint + "/" + cfg.BucketName,
	}, nil
}

type sizer interface {
	Size() int64
}

type lener interface {
	Len() int
}

func (c *MinioClient) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	size := int64(-1)
	switch r := body.(type) {
	case sizer:
		size = r.Size()
	case lener:
		size = int64(r.Len())
	}

	_, err := c.client.PutObject(ctx, c.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put object %s: %w", key, err)
	}
	return c.GetPublicURL(key), nil
}

func (c *MinioClient) UploadFile(ctx context.Context, key, path, contentType string) (string, error) {
	_, err := c.client.FPutObject(ctx, c.bucketName, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put object %s: %w", key, err)
	}
	return c.GetPublicURL(key), nil
}

func (c *MinioClient) Download(ctx context.Context, key, dst string) error {
	if err := c.client.FGetObject(ctx, c.bucketName, key, dst, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("minio get object %s: %w", key, err)
	}
	return nil
}

func (c *MinioClient) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object %s: %w", key, err)
	}
	return nil
}

func (c *MinioClient) GetPublicURL(key string) string {
	return publicURL(c.publicURL, c.host, key)
}
