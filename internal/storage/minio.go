package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/resqnet/backend/internal/config"
	"github.com/resqnet/backend/pkg/logger"
)

type MinIOClient struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	var creds *credentials.Credentials
	if cfg.UseIAM && cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
	}, nil
}

func publicBaseURL(cfg config.MinIOConfig) string {
	endpoint := cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	return strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
}

func (m *MinIOClient) objectURL(objectName string) string {
	return m.baseURL + "/" + objectName
}

func (m *MinIOClient) objectNameFromURL(objectURL string) (string, error) {
	prefix := m.baseURL + "/"
	if !strings.HasPrefix(objectURL, prefix) {
		return "", fmt.Errorf("url %q is not served by bucket %s", objectURL, m.bucket)
	}
	return url.PathUnescape(strings.TrimPrefix(objectURL, prefix))
}

func (m *MinIOClient) Store(ctx context.Context, folder, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := ValidateUpload(contentType, size); err != nil {
		return "", err
	}

	objectName := ObjectName(folder, filename, contentType)
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: normalizeContentType(contentType),
	})
	if err != nil {
		logger.Error("minio_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
		return "", fmt.Errorf("uploading %s: %w", objectName, err)
	}

	logger.Info("minio_upload_success", map[string]interface{}{
		"object_name":  objectName,
		"size":         size,
		"content_type": contentType,
		"bucket":       m.bucket,
	})
	return m.objectURL(objectName), nil
}

// Delete removes an object previously returned by Store. URLs pointing
// elsewhere, such as externally hosted id proofs, are ignored.
func (m *MinIOClient) Delete(ctx context.Context, objectURL string) error {
	objectName, err := m.objectNameFromURL(objectURL)
	if err != nil {
		return nil
	}

	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return err
	}
	logger.Info("minio_delete_success", map[string]interface{}{
		"object_name": objectName,
		"bucket":      m.bucket,
	})
	return nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
