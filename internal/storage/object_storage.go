package storage

import (
	"context"
	"fmt"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const archiveContentType = "application/gzip"

type (
	ObjectStorageConfig struct {
		Endpoint        string
		Bucket          string
		Region          string
		AccessKeyID     string
		SecretAccessKey string
	}

	// ObjectStorage stores archives in an S3 compatible bucket (Backblaze B2, Wasabi, MinIO...)
	ObjectStorage struct {
		client *minio.Client
		bucket string
	}
)

func NewObjectStorage(cfg ObjectStorageConfig) (*ObjectStorage, error) {
	host, secure, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = types.DefaultS3Region
	}

	mn, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create object storage client")
	}
	return &ObjectStorage{
		client: mn,
		bucket: cfg.Bucket,
	}, nil
}

// parseEndpoint accepts either a bare host or a URL, defaulting to https
func parseEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, types.NewValidationError("endpoint url is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, types.NewValidationError("invalid endpoint url: " + endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

func (s *ObjectStorage) Type() types.StorageType {
	return types.StorageTypeS3
}

func (s *ObjectStorage) Upload(ctx context.Context, localFile, remotePath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, remotePath, localFile, minio.PutObjectOptions{
		ContentType: archiveContentType,
	})
	return s.classify("upload", err)
}

func (s *ObjectStorage) Download(ctx context.Context, remotePath, localFile string) error {
	err := s.client.FGetObject(ctx, s.bucket, remotePath, localFile, minio.GetObjectOptions{})
	return s.classify("download", err)
}

func (s *ObjectStorage) Delete(ctx context.Context, remotePath string) error {
	err := s.client.RemoveObject(ctx, s.bucket, remotePath, minio.RemoveObjectOptions{})
	return s.classify("delete", err)
}

func (s *ObjectStorage) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, remotePath, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, s.classify("exists", err)
}

func (s *ObjectStorage) TestConnection(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{MaxKeys: 1}) {
		if obj.Err != nil {
			return false, s.describe(obj.Err)
		}
		break
	}
	return true, fmt.Sprintf("Connection successful. Bucket '%s' is accessible", s.bucket)
}

func (s *ObjectStorage) GetDownloadURL(ctx context.Context, remotePath string, expiresIn time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, remotePath, expiresIn, nil)
	if err != nil {
		return "", s.classify("presign", err)
	}
	return u.String(), nil
}

func (s *ObjectStorage) describe(err error) string {
	var serr *Error
	if !errors.As(s.classify("list", err), &serr) {
		return err.Error()
	}

	switch serr.Kind {
	case KindBucketMissing:
		return fmt.Sprintf("Bucket '%s' does not exist", s.bucket)
	case KindAccessDenied:
		return "Access denied. Check your credentials"
	default:
		return fmt.Sprintf("Connection failed: %v", err)
	}
}

func (s *ObjectStorage) classify(op string, err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return newError(op, KindNotFound, err)
	case "NoSuchBucket":
		return newError(op, KindBucketMissing, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return newError(op, KindAccessDenied, err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return newError(op, KindAccessDenied, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return newError(op, KindNotFound, err)
	}
	return newError(op, KindConnection, err)
}
