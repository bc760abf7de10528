package database

import (
	"context"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const settingsID = 1

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (s settingsRepository) Get(ctx context.Context) (*types.Settings, error) {
	settings := &types.Settings{}
	err := s.db.WithContext(ctx).Where("id = ?", settingsID).First(settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s settingsRepository) SaveBackupConfig(ctx context.Context, cfg *types.BackupConfig) error {
	return s.db.WithContext(ctx).Save(&types.Settings{ID: settingsID, Backup: cfg}).Error
}
