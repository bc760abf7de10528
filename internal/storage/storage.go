package storage

import (
	"context"
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"time"
)

type (
	ErrorKind string

	// Backend moves backup archives between the local filesystem and a storage provider
	Backend interface {
		Type() types.StorageType
		// Upload copies localFile to remotePath, creating missing intermediate directories
		Upload(ctx context.Context, localFile, remotePath string) error
		Download(ctx context.Context, remotePath, localFile string) error
		Delete(ctx context.Context, remotePath string) error
		Exists(ctx context.Context, remotePath string) (bool, error)
		// TestConnection never returns an error, failures are reported in the message
		TestConnection(ctx context.Context) (bool, string)
		// GetDownloadURL returns "" when the provider cannot serve the object directly
		GetDownloadURL(ctx context.Context, remotePath string, expiresIn time.Duration) (string, error)
	}

	// Error classifies provider failures so callers can tell terminal conditions apart
	Error struct {
		Kind ErrorKind
		Op   string
		Err  error
	}
)

const (
	KindNotFound       ErrorKind = "not found"
	KindAccessDenied   ErrorKind = "access denied"
	KindBucketMissing  ErrorKind = "bucket missing"
	KindAuthentication ErrorKind = "authentication failed"
	KindProtocol       ErrorKind = "protocol error"
	KindPermission     ErrorKind = "permission denied"
	KindConnection     ErrorKind = "connection failed"
	KindUnknown        ErrorKind = "unknown"
)

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// New builds the backend selected by cfg.StorageType. Stored credentials are decrypted
// once here and only kept in memory for the lifetime of the backend.
func New(cfg *types.BackupConfig, enc misc.Encryptor) (Backend, error) {
	if !cfg.Configured() {
		return nil, types.ErrBackupNotConfigured
	}

	switch cfg.StorageType {
	case types.StorageTypeLocal:
		path := types.DefaultLocalBackupPath
		if cfg.LocalConfig != nil && cfg.LocalConfig.Path != "" {
			path = cfg.LocalConfig.Path
		}
		return NewLocalStorage(path), nil
	case types.StorageTypeS3:
		if cfg.S3Config == nil {
			return nil, &types.ConfigurationError{Message: "S3 configuration not found"}
		}
		accessKey, err := enc.Decrypt(cfg.S3Config.AccessKeyIDEncrypted)
		if err != nil {
			return nil, err
		}
		secretKey, err := enc.Decrypt(cfg.S3Config.SecretAccessKeyEncrypted)
		if err != nil {
			return nil, err
		}
		return NewObjectStorage(ObjectStorageConfig{
			Endpoint:        cfg.S3Config.EndpointURL,
			Bucket:          cfg.S3Config.BucketName,
			Region:          cfg.S3Config.Region,
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		})
	case types.StorageTypeSFTP:
		if cfg.SFTPConfig == nil {
			return nil, &types.ConfigurationError{Message: "SFTP configuration not found"}
		}
		password, err := enc.Decrypt(cfg.SFTPConfig.PasswordEncrypted)
		if err != nil {
			return nil, err
		}
		return NewSFTPStorage(SFTPConfig{
			Host:       cfg.SFTPConfig.Host,
			Port:       cfg.SFTPConfig.Port,
			Username:   cfg.SFTPConfig.Username,
			Password:   password,
			RemotePath: cfg.SFTPConfig.RemotePath,
		}), nil
	default:
		return nil, &types.ConfigurationError{Message: "unknown storage type: " + cfg.StorageType.String()}
	}
}

// NewFromParams builds a backend from plain, not yet persisted credentials
func NewFromParams(params types.TestConnectionParams) (Backend, error) {
	switch params.StorageType {
	case types.StorageTypeLocal:
		if params.LocalConfig == nil || params.LocalConfig.Path == "" {
			return nil, types.NewValidationError("local configuration is required")
		}
		return NewLocalStorage(params.LocalConfig.Path), nil
	case types.StorageTypeS3:
		if params.S3Config == nil {
			return nil, types.NewValidationError("S3 configuration is required")
		}
		return NewObjectStorage(ObjectStorageConfig{
			Endpoint:        params.S3Config.EndpointURL,
			Bucket:          params.S3Config.BucketName,
			Region:          params.S3Config.Region,
			AccessKeyID:     params.S3Config.AccessKeyID,
			SecretAccessKey: params.S3Config.SecretAccessKey,
		})
	case types.StorageTypeSFTP:
		if params.SFTPConfig == nil {
			return nil, types.NewValidationError("SFTP configuration is required")
		}
		return NewSFTPStorage(SFTPConfig{
			Host:       params.SFTPConfig.Host,
			Port:       params.SFTPConfig.Port,
			Username:   params.SFTPConfig.Username,
			Password:   params.SFTPConfig.Password,
			RemotePath: params.SFTPConfig.RemotePath,
		}), nil
	default:
		return nil, types.NewValidationError("unknown storage type: " + params.StorageType.String())
	}
}
