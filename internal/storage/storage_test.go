package storage

import (
	"context"
	"errors"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	enc, err := misc.NewEncryptor("secret")
	require.NoError(t, err)

	access, err := enc.Encrypt("AKIA")
	require.NoError(t, err)
	secret, err := enc.Encrypt("s3cr3t")
	require.NoError(t, err)

	t.Run("not configured", func(t *testing.T) {
		_, err := New(nil, enc)
		assert.True(t, errors.Is(err, types.ErrBackupNotConfigured))

		_, err = New(&types.BackupConfig{}, enc)
		assert.True(t, errors.Is(err, types.ErrBackupNotConfigured))
	})

	t.Run("local falls back to default path", func(t *testing.T) {
		b, err := New(&types.BackupConfig{StorageType: types.StorageTypeLocal}, enc)
		require.NoError(t, err)
		assert.Equal(t, types.StorageTypeLocal, b.Type())
		assert.Equal(t, types.DefaultLocalBackupPath, b.(*LocalStorage).basePath)
	})

	t.Run("s3", func(t *testing.T) {
		b, err := New(&types.BackupConfig{
			StorageType: types.StorageTypeS3,
			S3Config: &types.S3Config{
				EndpointURL:              "https://s3.us-west-004.backblazeb2.com",
				BucketName:               "tracker",
				AccessKeyIDEncrypted:     access,
				SecretAccessKeyEncrypted: secret,
			},
		}, enc)
		require.NoError(t, err)
		assert.Equal(t, types.StorageTypeS3, b.Type())
	})

	t.Run("s3 missing config", func(t *testing.T) {
		_, err := New(&types.BackupConfig{StorageType: types.StorageTypeS3}, enc)
		var cerr *types.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("foreign ciphertext", func(t *testing.T) {
		other, err := misc.NewEncryptor("rotated")
		require.NoError(t, err)

		_, err = New(&types.BackupConfig{
			StorageType: types.StorageTypeSFTP,
			SFTPConfig:  &types.SFTPConfig{Host: "h", PasswordEncrypted: secret},
		}, other)
		var derr *misc.DecryptionError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(&types.BackupConfig{StorageType: "ftp"}, enc)
		var cerr *types.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})
}

func TestNewFromParams(t *testing.T) {
	_, err := NewFromParams(types.TestConnectionParams{StorageType: types.StorageTypeSFTP})
	var verr *types.ValidationError
	assert.True(t, errors.As(err, &verr))

	b, err := NewFromParams(types.TestConnectionParams{
		StorageType: types.StorageTypeLocal,
		LocalConfig: &types.LocalConfig{Path: t.TempDir()},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StorageTypeLocal, b.Type())
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026/03/backup.gz", ArchivePath(types.StorageTypeLocal, at, "backup.gz"))
	assert.Equal(t, "backups/2026/03/backup.gz", ArchivePath(types.StorageTypeS3, at, "backup.gz"))
	assert.Equal(t, "backups/2026/03/backup.gz", ArchivePath(types.StorageTypeSFTP, at, "backup.gz"))
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("https://s3.eu-central-003.backblazeb2.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.eu-central-003.backblazeb2.com", host)
	assert.True(t, secure)

	host, secure, err = parseEndpoint("http://minio:9000")
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.False(t, secure)

	host, secure, err = parseEndpoint("s3.wasabisys.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.wasabisys.com", host)
	assert.True(t, secure)

	_, _, err = parseEndpoint("")
	assert.Error(t, err)
}

func newTestObjectStorage(t *testing.T, handler http.HandlerFunc) *ObjectStorage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewObjectStorage(ObjectStorageConfig{
		Endpoint:        srv.URL,
		Bucket:          "tracker",
		Region:          "us-west-004",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return s
}

func s3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`))
}

func TestObjectStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("exists false on 404", func(t *testing.T) {
		s := newTestObjectStorage(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		exists, err := s.Exists(ctx, "backups/2026/01/missing.gz")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete access denied", func(t *testing.T) {
		s := newTestObjectStorage(t, func(w http.ResponseWriter, r *http.Request) {
			s3Error(w, http.StatusForbidden, "AccessDenied")
		})
		err := s.Delete(ctx, "backups/2026/01/a.gz")
		var serr *Error
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, KindAccessDenied, serr.Kind)
	})

	t.Run("test connection missing bucket", func(t *testing.T) {
		s := newTestObjectStorage(t, func(w http.ResponseWriter, r *http.Request) {
			s3Error(w, http.StatusNotFound, "NoSuchBucket")
		})
		ok, msg := s.TestConnection(ctx)
		assert.False(t, ok)
		assert.Equal(t, "Bucket 'tracker' does not exist", msg)
	})

	t.Run("test connection access denied", func(t *testing.T) {
		s := newTestObjectStorage(t, func(w http.ResponseWriter, r *http.Request) {
			s3Error(w, http.StatusForbidden, "AccessDenied")
		})
		ok, msg := s.TestConnection(ctx)
		assert.False(t, ok)
		assert.Contains(t, msg, "Access denied")
	})

	t.Run("presigned url", func(t *testing.T) {
		s := newTestObjectStorage(t, func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("presigning must not hit the network: %s", r.URL)
		})
		u, err := s.GetDownloadURL(ctx, "backups/2026/01/a.gz", time.Hour)
		require.NoError(t, err)
		assert.True(t, strings.Contains(u, "/tracker/backups/2026/01/a.gz"))
		assert.Contains(t, u, "X-Amz-Expires=3600")
	})
}
