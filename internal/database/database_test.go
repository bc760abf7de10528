package database

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newRecord(createdAt time.Time, status types.BackupStatus, trigger types.BackupTrigger) *types.BackupRecord {
	return &types.BackupRecord{
		ID:          uuid.New(),
		Filename:    "backup.gz",
		StorageType: types.StorageTypeLocal,
		CreatedAt:   createdAt,
		Status:      status,
		Trigger:     trigger,
	}
}

func TestBackupRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBackupRepository(openTestDB(t))
	now := time.Now().UTC()

	old := newRecord(now.AddDate(0, 0, -40), types.BackupStatusCompleted, types.TriggerScheduled)
	oldPreRestore := newRecord(now.AddDate(0, 0, -40), types.BackupStatusCompleted, types.TriggerPreRestore)
	oldFailed := newRecord(now.AddDate(0, 0, -40), types.BackupStatusFailed, types.TriggerManual)
	fresh := newRecord(now, types.BackupStatusCompleted, types.TriggerManual)
	for _, r := range []*types.BackupRecord{old, oldPreRestore, oldFailed, fresh} {
		require.NoError(t, repo.Save(ctx, r))
	}

	t.Run("find by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, got.ID)
		assert.Equal(t, types.TriggerManual, got.Trigger)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})

	t.Run("find all newest first", func(t *testing.T) {
		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, fresh.ID, all[0].ID)
	})

	t.Run("expired excludes pre-restore and failed", func(t *testing.T) {
		expired, err := repo.FindExpired(ctx, now.AddDate(0, 0, -30))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, old.ID, expired[0].ID)
	})

	t.Run("update then delete", func(t *testing.T) {
		msg := "failed"
		fresh.ErrorMessage = &msg
		require.NoError(t, repo.Save(ctx, fresh))

		got, err := repo.FindByID(ctx, fresh.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "failed", *got.ErrorMessage)

		require.NoError(t, repo.Delete(ctx, fresh.ID))
		_, err = repo.FindByID(ctx, fresh.ID)
		assert.True(t, errors.Is(err, types.ErrBackupNotFound))
	})
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	settings, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings)

	dow := 2
	cfg := &types.BackupConfig{
		Enabled:       true,
		RetentionDays: 14,
		StorageType:   types.StorageTypeSFTP,
		Schedule:      &types.Schedule{Frequency: types.FrequencyWeekly, Time: "02:30", DayOfWeek: &dow},
		SFTPConfig:    &types.SFTPConfig{Host: "example.com", Port: 22, Username: "u", PasswordEncrypted: "abc"},
	}
	require.NoError(t, repo.SaveBackupConfig(ctx, cfg))

	settings, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, cfg, settings.Backup)

	cfg.Enabled = false
	require.NoError(t, repo.SaveBackupConfig(ctx, cfg))
	settings, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, settings.Backup.Enabled)
}
