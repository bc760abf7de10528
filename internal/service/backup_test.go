package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/storage"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

var filenameRe = regexp.MustCompile(`^backup_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}_[0-9a-f]{8}\.gz$`)

func TestCreateBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		var cerr *types.ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "backup not configured", cerr.Message)

		all, err := env.backups.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		env.svc.now = func() time.Time { return time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC) }

		record, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusCompleted, record.Status)
		assert.Regexp(t, filenameRe, record.Filename)
		assert.True(t, strings.HasPrefix(record.StoragePath, "backups/2026/03/"))
		assert.Equal(t, int64(len("archive-bytes")), record.SizeBytes)
		assert.Equal(t, "13.0 B", record.SizeHuman)
		require.NotNil(t, record.ChecksumSHA256)
		assert.Len(t, *record.ChecksumSHA256, 64)
		assert.Equal(t, 3, *record.CollectionsCount)
		assert.Equal(t, 120, *record.DocumentsCount)
		assert.NotNil(t, record.CompletedAt)
		assert.True(t, env.store.has(record.StoragePath))

		stored, err := env.backups.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusCompleted, stored.Status)
		assertTempEmpty(t, env.tempDir)
	})

	t.Run("local storage", func(t *testing.T) {
		env := newTestEnv(t)
		base := t.TempDir()
		env.configure(t, &types.BackupConfig{
			StorageType: types.StorageTypeLocal,
			LocalConfig: &types.LocalConfig{Path: base},
		})
		env.svc.newStorage = func(cfg *types.BackupConfig) (storage.Backend, error) {
			return storage.New(cfg, env.enc)
		}
		env.svc.now = func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }

		record, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusCompleted, record.Status)
		assert.Equal(t, types.StorageTypeLocal, record.StorageType)
		assert.Greater(t, record.SizeBytes, int64(0))
		assert.True(t, strings.HasPrefix(record.StoragePath, "2026/10/"), record.StoragePath)

		content, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(record.StoragePath)))
		require.NoError(t, err)
		assert.Equal(t, "archive-bytes", string(content))

		sum := sha256.Sum256(content)
		require.NotNil(t, record.ChecksumSHA256)
		assert.Equal(t, hex.EncodeToString(sum[:]), *record.ChecksumSHA256)
		assertTempEmpty(t, env.tempDir)

		// the archive vanished from disk, delete still clears the catalog
		require.NoError(t, os.Remove(filepath.Join(base, filepath.FromSlash(record.StoragePath))))
		require.NoError(t, env.svc.DeleteBackup(ctx, record.ID))
		_, err = env.backups.FindByID(ctx, record.ID)
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})

	t.Run("manual backup allowed while disabled", func(t *testing.T) {
		env := newTestEnv(t)
		cfg := s3Config()
		cfg.Enabled = false
		env.configure(t, cfg)

		record, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusCompleted, record.Status)
	})

	t.Run("dump failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		env.tool.dumpErr = &backup.ToolExecutionError{Tool: "mongodump", ExitCode: 1, Stderr: "auth failed"}

		record, err := env.svc.CreateBackup(ctx, types.TriggerScheduled)
		var terr *backup.ToolExecutionError
		require.True(t, errors.As(err, &terr))

		stored, err := env.backups.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Contains(t, *stored.ErrorMessage, "auth failed")
		assert.NotNil(t, stored.CompletedAt)
		assert.Nil(t, stored.ChecksumSHA256)
		assertTempEmpty(t, env.tempDir)
	})

	t.Run("upload failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		env.store.uploadErr = &storage.Error{Op: "upload", Kind: storage.KindAccessDenied, Err: errors.New("denied")}

		record, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		require.Error(t, err)

		stored, err := env.backups.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusFailed, stored.Status)
		assert.Equal(t, int64(0), stored.SizeBytes)
		assert.Nil(t, stored.ChecksumSHA256)
		assertTempEmpty(t, env.tempDir)
	})

	t.Run("backend construction failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		env.svc.newStorage = func(*types.BackupConfig) (storage.Backend, error) {
			return nil, errors.New("bad credentials")
		}

		record, err := env.svc.CreateBackup(ctx, types.TriggerManual)
		require.Error(t, err)
		stored, err := env.backups.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusFailed, stored.Status)
	})

	t.Run("concurrent runs get distinct records", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		fixed := time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC)
		env.svc.now = func() time.Time { return fixed }

		var wg sync.WaitGroup
		records := make([]*types.BackupRecord, 4)
		for i := range records {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec, err := env.svc.CreateBackup(ctx, types.TriggerManual)
				assert.NoError(t, err)
				records[i] = rec
			}(i)
		}
		wg.Wait()

		paths := map[string]bool{}
		for _, r := range records {
			require.NotNil(t, r)
			paths[r.StoragePath] = true
		}
		assert.Len(t, paths, 4)
	})
}

func completedBackup(t *testing.T, env *testEnv) *types.BackupRecord {
	t.Helper()
	record, err := env.svc.CreateBackup(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	return record
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("missing backup", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())

		_, err := env.svc.RestoreBackup(ctx, uuid.New())
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))

		all, err := env.backups.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all, "no pre-restore backup for a missing target")
	})

	t.Run("incomplete backup", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		env.tool.dumpErr = errors.New("boom")
		failed, _ := env.svc.CreateBackup(ctx, types.TriggerManual)
		env.tool.dumpErr = nil

		_, err := env.svc.RestoreBackup(ctx, failed.ID)
		var verr *types.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "cannot restore from incomplete backup", verr.Message)

		all, err := env.backups.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		target := completedBackup(t, env)

		result, err := env.svc.RestoreBackup(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RestoreStatusSuccess, result.Status)

		pre, err := env.backups.FindByID(ctx, result.PreRestoreBackupID)
		require.NoError(t, err)
		assert.Equal(t, types.TriggerPreRestore, pre.Trigger)
		assert.Equal(t, types.BackupStatusCompleted, pre.Status)
		assert.Equal(t, []string{"archive-bytes"}, env.tool.restored)
		assertTempEmpty(t, env.tempDir)
	})

	t.Run("pre-restore failure aborts", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		target := completedBackup(t, env)
		env.tool.dumpErrAfter = 1

		_, err := env.svc.RestoreBackup(ctx, target.ID)
		require.Error(t, err)
		assert.Empty(t, env.tool.restored, "restore must not run without a pre-restore backup")
	})

	t.Run("restore tool failure keeps recovery path", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		target := completedBackup(t, env)
		env.tool.restoreErr = &backup.ToolExecutionError{Tool: "mongorestore", ExitCode: 1, Stderr: "bad archive"}

		result, err := env.svc.RestoreBackup(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RestoreStatusFailed, result.Status)
		assert.Contains(t, result.Message, "bad archive")
		assert.Contains(t, result.Message, result.PreRestoreBackupID.String())

		pre, err := env.backups.FindByID(ctx, result.PreRestoreBackupID)
		require.NoError(t, err)
		assert.Equal(t, types.BackupStatusCompleted, pre.Status)
		assertTempEmpty(t, env.tempDir)
	})

	t.Run("download failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		target := completedBackup(t, env)
		env.store.downloadErr = errUnreachable

		result, err := env.svc.RestoreBackup(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RestoreStatusFailed, result.Status)
		assert.Empty(t, env.tool.restored)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		target := completedBackup(t, env)
		env.store.corrupt = true

		result, err := env.svc.RestoreBackup(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, types.RestoreStatusFailed, result.Status)
		assert.Contains(t, result.Message, "checksum mismatch")
		assert.Empty(t, env.tool.restored)
	})
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.DeleteBackup(ctx, uuid.New())
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})

	t.Run("removes archive and record", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		record := completedBackup(t, env)

		require.NoError(t, env.svc.DeleteBackup(ctx, record.ID))
		assert.False(t, env.store.has(record.StoragePath))
		_, err := env.backups.FindByID(ctx, record.ID)
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})

	t.Run("storage failure still removes record", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())
		record := completedBackup(t, env)
		env.store.deleteErr = errUnreachable

		require.NoError(t, env.svc.DeleteBackup(ctx, record.ID))
		_, err := env.backups.FindByID(ctx, record.ID)
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})
}

func TestCleanupOldBackups(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		cfg := s3Config()
		cfg.Enabled = false
		env.configure(t, cfg)

		n, err := env.svc.CleanupOldBackups(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("not configured is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		n, err := env.svc.CleanupOldBackups(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("removes expired completed backups only", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())

		now := time.Now().UTC()
		env.svc.now = func() time.Time { return now.AddDate(0, 0, -60) }
		oldScheduled, err := env.svc.CreateBackup(ctx, types.TriggerScheduled)
		require.NoError(t, err)
		oldPreRestore, err := env.svc.CreateBackup(ctx, types.TriggerPreRestore)
		require.NoError(t, err)
		env.tool.dumpErr = errors.New("boom")
		oldFailed, _ := env.svc.CreateBackup(ctx, types.TriggerManual)
		env.tool.dumpErr = nil

		env.svc.now = func() time.Time { return now }
		fresh, err := env.svc.CreateBackup(ctx, types.TriggerScheduled)
		require.NoError(t, err)

		n, err := env.svc.CleanupOldBackups(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = env.backups.FindByID(ctx, oldScheduled.ID)
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
		assert.False(t, env.store.has(oldScheduled.StoragePath))

		for _, kept := range []*types.BackupRecord{oldPreRestore, oldFailed, fresh} {
			_, err := env.backups.FindByID(ctx, kept.ID)
			assert.NoError(t, err)
		}
	})

	t.Run("storage failures do not stop cleanup", func(t *testing.T) {
		env := newTestEnv(t)
		env.configure(t, s3Config())

		now := time.Now().UTC()
		env.svc.now = func() time.Time { return now.AddDate(0, 0, -90) }
		completedBackup(t, env)
		completedBackup(t, env)
		env.svc.now = func() time.Time { return now }
		env.store.deleteErr = errUnreachable

		n, err := env.svc.CleanupOldBackups(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestListBackups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.configure(t, s3Config())

	completedBackup(t, env)
	completedBackup(t, env)
	env.tool.dumpErr = errors.New("boom")
	_, _ = env.svc.CreateBackup(ctx, types.TriggerManual)

	list, err := env.svc.ListBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, list.TotalCount)
	assert.Equal(t, int64(26), list.TotalSizeBytes)
	assert.Equal(t, "26.0 B", list.TotalSizeHuman)
}

func TestGetDownloadURL(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.configure(t, s3Config())
	record := completedBackup(t, env)

	u, err := env.svc.GetDownloadURL(ctx, record.ID)
	require.NoError(t, err)
	assert.Contains(t, u, record.StoragePath)

	_, err = env.svc.GetDownloadURL(ctx, uuid.New())
	assert.True(t, errors.Is(err, types.ErrBackupNotFound))
}

func TestGetLocalBackupPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	base := t.TempDir()
	env.configure(t, &types.BackupConfig{
		StorageType: types.StorageTypeLocal,
		LocalConfig: &types.LocalConfig{Path: base},
	})
	env.svc.newStorage = func(cfg *types.BackupConfig) (storage.Backend, error) {
		return storage.New(cfg, env.enc)
	}

	record := completedBackup(t, env)
	p, err := env.svc.GetLocalBackupPath(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, base))
	assert.FileExists(t, p)

	// switching to s3 keeps the stored local config, existing local archives stay reachable
	cfg := s3Config()
	cfg.LocalConfig = &types.LocalConfig{Path: base}
	env.configure(t, cfg)
	p, err = env.svc.GetLocalBackupPath(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, base))
	assert.FileExists(t, p)

	env.svc.newStorage = func(*types.BackupConfig) (storage.Backend, error) { return env.store, nil }
	remote := completedBackup(t, env)
	p, err = env.svc.GetLocalBackupPath(ctx, remote.ID)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestTestConnection(t *testing.T) {
	env := newTestEnv(t)

	result := env.svc.TestConnection(context.Background(), types.TestConnectionParams{StorageType: types.StorageTypeSFTP})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "SFTP configuration is required")

	result = env.svc.TestConnection(context.Background(), types.TestConnectionParams{
		StorageType: types.StorageTypeLocal,
		LocalConfig: &types.LocalConfig{Path: t.TempDir()},
	})
	assert.True(t, result.Success)

	settings, err := env.settings.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings, "testing a connection must not persist anything")
}
