package database

import (
	"context"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"time"
)

type backupRepository struct {
	db *gorm.DB
}

func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

func (b backupRepository) Save(ctx context.Context, record *types.BackupRecord) error {
	return b.db.WithContext(ctx).Save(record).Error
}

func (b backupRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	record := &types.BackupRecord{}
	err := b.db.WithContext(ctx).Where("id = ?", id).First(record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrBackupNotFound
	}
	return record, err
}

func (b backupRepository) FindAll(ctx context.Context) ([]*types.BackupRecord, error) {
	result := make([]*types.BackupRecord, 0)
	err := b.db.WithContext(ctx).Order("created_at desc").Find(&result).Error
	return result, err
}

func (b backupRepository) FindExpired(ctx context.Context, cutoff time.Time) ([]*types.BackupRecord, error) {
	result := make([]*types.BackupRecord, 0)
	err := b.db.WithContext(ctx).
		Where("status = ? AND `trigger` != ? AND created_at < ?",
			types.BackupStatusCompleted, types.TriggerPreRestore, cutoff).
		Order("created_at asc").
		Find(&result).Error
	return result, err
}

func (b backupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Delete(&types.BackupRecord{}, "id = ?", id).Error
}
