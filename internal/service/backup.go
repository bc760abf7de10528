package service

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/database"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/storage"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/internal/worker"
	"github.com/opentracker-es/opentracker-api/logger"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"time"
)

const (
	// DownloadURLExpiry is how long pre-signed object storage links stay valid
	DownloadURLExpiry = time.Hour

	archiveTimeLayout = "2006-01-02_15-04-05"
)

type (
	BackupService interface {
		// CreateBackup dumps the database and uploads the archive. The returned record is
		// always in a terminal state; on failure it is returned alongside the error.
		CreateBackup(ctx context.Context, trigger types.BackupTrigger) (*types.BackupRecord, error)
		// RestoreBackup takes a pre-restore backup first and aborts if that fails. A failed
		// restore is reported in the result, not as an error.
		RestoreBackup(ctx context.Context, id uuid.UUID) (*types.RestoreResult, error)
		DeleteBackup(ctx context.Context, id uuid.UUID) error
		CleanupOldBackups(ctx context.Context) (int, error)
		GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error)
		GetLocalBackupPath(ctx context.Context, id uuid.UUID) (string, error)
		TestConnection(ctx context.Context, params types.TestConnectionParams) types.TestConnectionResult
		ListBackups(ctx context.Context) (*types.BackupList, error)
		GetBackup(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error)
	}

	backupService struct {
		tool      backup.Tool
		backups   database.BackupRepository
		settings  database.SettingsRepository
		encryptor misc.Encryptor
		pool      *worker.Pool
		tempDir   string

		newStorage     func(cfg *types.BackupConfig) (storage.Backend, error)
		newTestStorage func(params types.TestConnectionParams) (storage.Backend, error)
		now            func() time.Time
	}
)

func NewBackupService(tool backup.Tool, backups database.BackupRepository, settings database.SettingsRepository,
	encryptor misc.Encryptor, pool *worker.Pool, tempDir string) BackupService {
	return newBackupService(tool, backups, settings, encryptor, pool, tempDir)
}

func newBackupService(tool backup.Tool, backups database.BackupRepository, settings database.SettingsRepository,
	encryptor misc.Encryptor, pool *worker.Pool, tempDir string) *backupService {
	s := &backupService{
		tool:           tool,
		backups:        backups,
		settings:       settings,
		encryptor:      encryptor,
		pool:           pool,
		tempDir:        tempDir,
		newTestStorage: storage.NewFromParams,
		now:            time.Now,
	}
	s.newStorage = func(cfg *types.BackupConfig) (storage.Backend, error) {
		return storage.New(cfg, s.encryptor)
	}
	return s
}

func (s *backupService) loadConfig(ctx context.Context) (*types.BackupConfig, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settings")
	}
	if settings == nil || !settings.Backup.Configured() {
		return nil, types.ErrBackupNotConfigured
	}
	return settings.Backup, nil
}

func (s *backupService) CreateBackup(ctx context.Context, trigger types.BackupTrigger) (*types.BackupRecord, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	suffix, err := misc.RandomHex(4)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("backup_%s_%s.gz", now.Format(archiveTimeLayout), suffix)
	record := &types.BackupRecord{
		ID:          uuid.New(),
		Filename:    filename,
		StoragePath: storage.ArchivePath(cfg.StorageType, now, filename),
		StorageType: cfg.StorageType,
		CreatedAt:   now,
		Status:      types.BackupStatusInProgress,
		Trigger:     trigger,
	}
	if err := s.backups.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to save backup record")
	}

	logger.Info("starting backup",
		zap.String("id", record.ID.String()),
		zap.String("trigger", string(trigger)),
		zap.String("storage_type", cfg.StorageType.String()))

	// terminal state must be persisted even if the caller went away
	persistCtx := context.WithoutCancel(ctx)
	if err := s.execute(ctx, cfg, record); err != nil {
		record.MarkFailed(s.now().UTC(), err)
		if serr := s.backups.Save(persistCtx, record); serr != nil {
			logger.Error("failed to mark backup as failed",
				zap.String("id", record.ID.String()),
				zap.Error(serr))
		}
		logger.Error("backup failed",
			zap.String("id", record.ID.String()),
			zap.Error(err))
		return record, err
	}

	if err := s.backups.Save(persistCtx, record); err != nil {
		record.MarkFailed(s.now().UTC(), err)
		_ = s.backups.Save(persistCtx, record)
		return record, errors.Wrap(err, "failed to save completed backup")
	}

	logger.Info("backup completed",
		zap.String("id", record.ID.String()),
		zap.String("size", record.SizeHuman),
		zap.String("path", record.StoragePath))
	return record, nil
}

// execute dumps, fingerprints and uploads the archive, marking record completed on success
func (s *backupService) execute(ctx context.Context, cfg *types.BackupConfig, record *types.BackupRecord) error {
	dir, err := os.MkdirTemp(s.tempDir, "backup-")
	if err != nil {
		return errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(dir)

	archive := filepath.Join(dir, record.Filename)
	stats, err := worker.Run(ctx, s.pool, func(ctx context.Context) (backup.DumpStats, error) {
		return s.tool.Dump(ctx, archive)
	})
	if err != nil {
		return err
	}

	checksum, size, err := misc.FileChecksum(archive)
	if err != nil {
		return errors.Wrap(err, "failed to read dump archive")
	}

	backend, err := s.newStorage(cfg)
	if err != nil {
		return err
	}

	_, err = worker.Run(ctx, s.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, backend.Upload(ctx, archive, record.StoragePath)
	})
	if err != nil {
		return err
	}

	record.MarkCompleted(s.now().UTC(), size, misc.FormatSize(size), checksum, stats.Collections, stats.Documents)
	return nil
}

func (s *backupService) RestoreBackup(ctx context.Context, id uuid.UUID) (*types.RestoreResult, error) {
	record, err := s.backups.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != types.BackupStatusCompleted {
		return nil, types.ErrIncompleteBackup
	}

	logger.Info("creating pre-restore backup",
		zap.String("restore_from", record.ID.String()))
	pre, err := s.CreateBackup(ctx, types.TriggerPreRestore)
	if err != nil {
		return nil, errors.Wrap(err, "pre-restore backup failed, restore aborted")
	}

	result := &types.RestoreResult{PreRestoreBackupID: pre.ID}
	if err := s.restore(ctx, record); err != nil {
		logger.Error("restore failed",
			zap.String("id", record.ID.String()),
			zap.String("pre_restore_backup_id", pre.ID.String()),
			zap.Error(err))
		result.Status = types.RestoreStatusFailed
		result.Message = fmt.Sprintf("Restore failed: %v. Pre-restore backup %s is available for recovery", err, pre.ID)
		return result, nil
	}

	logger.Info("restore completed",
		zap.String("id", record.ID.String()),
		zap.String("pre_restore_backup_id", pre.ID.String()))
	result.Status = types.RestoreStatusSuccess
	result.Message = fmt.Sprintf("Database restored from %s", record.Filename)
	return result, nil
}

func (s *backupService) restore(ctx context.Context, record *types.BackupRecord) error {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.StorageType != record.StorageType {
		logger.Warn("backup was stored on a different storage type than currently configured",
			zap.String("record_storage_type", record.StorageType.String()),
			zap.String("configured_storage_type", cfg.StorageType.String()))
	}

	backend, err := s.newStorage(cfg)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp(s.tempDir, "restore-")
	if err != nil {
		return errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(dir)

	archive := filepath.Join(dir, record.Filename)
	_, err = worker.Run(ctx, s.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, backend.Download(ctx, record.StoragePath, archive)
	})
	if err != nil {
		return err
	}

	if record.ChecksumSHA256 != nil {
		checksum, _, err := misc.FileChecksum(archive)
		if err != nil {
			return errors.Wrap(err, "failed to read downloaded archive")
		}
		if checksum != *record.ChecksumSHA256 {
			return fmt.Errorf("checksum mismatch: expected %s, got %s", *record.ChecksumSHA256, checksum)
		}
	}

	_, err = worker.Run(ctx, s.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.tool.Restore(ctx, archive)
	})
	return err
}

func (s *backupService) DeleteBackup(ctx context.Context, id uuid.UUID) error {
	record, err := s.backups.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.deleteArchive(ctx, record)
	if err := s.backups.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "failed to delete backup record")
	}

	logger.Info("backup deleted",
		zap.String("id", id.String()),
		zap.String("filename", record.Filename))
	return nil
}

// deleteArchive removes the stored archive. Failures only warn, the catalog entry goes regardless.
func (s *backupService) deleteArchive(ctx context.Context, record *types.BackupRecord) {
	if record.StoragePath == "" {
		return
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		logger.Warn("cannot resolve storage to delete archive", zap.String("id", record.ID.String()), zap.Error(err))
		return
	}

	backend, err := s.newStorage(cfg)
	if err != nil {
		logger.Warn("cannot resolve storage to delete archive", zap.String("id", record.ID.String()), zap.Error(err))
		return
	}

	if err := backend.Delete(ctx, record.StoragePath); err != nil {
		logger.Warn("failed to delete archive from storage",
			zap.String("id", record.ID.String()),
			zap.String("path", record.StoragePath),
			zap.Error(err))
	}
}

func (s *backupService) CleanupOldBackups(ctx context.Context) (int, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load settings")
	}
	if settings == nil || !settings.Backup.Configured() || !settings.Backup.Enabled {
		return 0, nil
	}

	retention := settings.Backup.Retention()
	cutoff := s.now().UTC().AddDate(0, 0, -retention)
	expired, err := s.backups.FindExpired(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to find expired backups")
	}

	removed := 0
	for _, record := range expired {
		if err := s.DeleteBackup(ctx, record.ID); err != nil {
			logger.Error("failed to delete expired backup",
				zap.String("id", record.ID.String()),
				zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("old backups cleaned up",
			zap.Int("removed", removed),
			zap.Int("retention_days", retention))
	}
	return removed, nil
}

func (s *backupService) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.backups.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return "", err
	}

	backend, err := s.newStorage(cfg)
	if err != nil {
		return "", err
	}
	return backend.GetDownloadURL(ctx, record.StoragePath, DownloadURLExpiry)
}

// GetLocalBackupPath returns the archive location on disk, or "" when the backup was not
// written to local storage. Local archives stay reachable after storage is switched elsewhere.
func (s *backupService) GetLocalBackupPath(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.backups.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if record.StorageType != types.StorageTypeLocal {
		return "", nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to load settings")
	}

	base := types.DefaultLocalBackupPath
	if settings != nil && settings.Backup != nil && settings.Backup.LocalConfig != nil && settings.Backup.LocalConfig.Path != "" {
		base = settings.Backup.LocalConfig.Path
	}
	return storage.NewLocalStorage(base).FullPath(record.StoragePath)
}

func (s *backupService) TestConnection(ctx context.Context, params types.TestConnectionParams) types.TestConnectionResult {
	backend, err := s.newTestStorage(params)
	if err != nil {
		return types.TestConnectionResult{Success: false, Message: err.Error()}
	}

	ok, message := backend.TestConnection(ctx)
	logger.Info("storage connection tested",
		zap.String("storage_type", params.StorageType.String()),
		zap.Bool("success", ok))
	return types.TestConnectionResult{Success: ok, Message: message}
}

func (s *backupService) ListBackups(ctx context.Context) (*types.BackupList, error) {
	records, err := s.backups.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list backups")
	}

	completed := lo.Filter(records, func(item *types.BackupRecord, _ int) bool {
		return item.Status == types.BackupStatusCompleted
	})
	total := lo.SumBy(completed, func(item *types.BackupRecord) int64 {
		return item.SizeBytes
	})
	return &types.BackupList{
		Backups:        records,
		TotalCount:     len(records),
		TotalSizeBytes: total,
		TotalSizeHuman: misc.FormatSize(total),
	}, nil
}

func (s *backupService) GetBackup(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	return s.backups.FindByID(ctx, id)
}
