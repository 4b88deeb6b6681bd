package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// LocalStorage keeps uploaded images on local disk under UploadDir.
// Keys look like "images/p/<uuid>.jpg" and are served from /uploads/.
type LocalStorage struct {
	UploadDir string
}

func (ls *LocalStorage) SaveFile(_ context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(ls.UploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}
	return "/uploads/" + key, nil
}

func (ls *LocalStorage) DeleteFile(_ context.Context, url string) error {
	key := strings.TrimPrefix(url, "/uploads/")
	if key == url || strings.Contains(key, "..") {
		return fmt.Errorf("refusing to delete %q outside the upload dir", url)
	}
	err := os.Remove(filepath.Join(ls.UploadDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// S3Storage keeps uploaded images in an S3-compatible bucket.
type S3Storage struct {
	Client     *minio.Client
	BucketName string
	PublicURL  string
}

func NewS3Storage(ctx context.Context, endpoint, accessKey, secretKey, bucket, region, publicURL string, useSSL bool) (*S3Storage, error) {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if accessKey == "" || secretKey == "" {
		// Use IAM role credentials if keys are not provided
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	if publicURL == "" {
		protocol := "http"
		if useSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s.%s", protocol, bucket, endpoint)
	}

	return &S3Storage{
		Client:     client,
		BucketName: bucket,
		PublicURL:  strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s3 *S3Storage) SaveFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s3.Client.PutObject(ctx, s3.BucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s3.PublicURL + "/" + key, nil
}

func (s3 *S3Storage) DeleteFile(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s3.PublicURL+"/")
	if key == url {
		// Not one of ours; fall back to the trailing "images/<type>/<name>" part.
		parts := strings.Split(url, "/")
		if len(parts) < 3 {
			return nil
		}
		key = path.Join(parts[len(parts)-3:]...)
	}
	return s3.Client.RemoveObject(ctx, s3.BucketName, key, minio.RemoveObjectOptions{})
}
