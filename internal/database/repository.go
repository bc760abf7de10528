package database

import (
	"context"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"time"
)

type (
	BackupRepository interface {
		Save(ctx context.Context, record *types.BackupRecord) error
		FindByID(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error)
		FindAll(ctx context.Context) ([]*types.BackupRecord, error)
		// FindExpired returns completed, non pre-restore records created before cutoff
		FindExpired(ctx context.Context, cutoff time.Time) ([]*types.BackupRecord, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	SettingsRepository interface {
		// Get returns nil when no settings were ever saved
		Get(ctx context.Context) (*types.Settings, error)
		SaveBackupConfig(ctx context.Context, cfg *types.BackupConfig) error
	}
)
