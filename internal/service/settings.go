package service

import (
	"context"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/database"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strings"
)

type (
	SettingsService interface {
		GetBackupConfig(ctx context.Context) (*types.BackupConfigView, error)
		UpdateBackupConfig(ctx context.Context, input types.BackupConfigInput) (*types.BackupConfigView, error)
	}

	ScheduleReloader interface {
		ReloadSchedule(ctx context.Context) error
	}

	settingsService struct {
		settings  database.SettingsRepository
		encryptor misc.Encryptor
		reloader  ScheduleReloader
		validate  *validator.Validate
	}
)

func NewSettingsService(settings database.SettingsRepository, encryptor misc.Encryptor, reloader ScheduleReloader) SettingsService {
	return &settingsService{
		settings:  settings,
		encryptor: encryptor,
		reloader:  reloader,
		validate:  NewValidator(),
	}
}

// NewValidator returns a validator that also understands the "clock" (HH:MM) tag
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := backup.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

func (s *settingsService) GetBackupConfig(ctx context.Context) (*types.BackupConfigView, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settings")
	}
	if settings == nil {
		return nil, nil
	}
	return settings.Backup.View(), nil
}

func (s *settingsService) UpdateBackupConfig(ctx context.Context, input types.BackupConfigInput) (*types.BackupConfigView, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, ValidationMessage(err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settings")
	}

	var existing *types.BackupConfig
	if settings != nil {
		existing = settings.Backup
	}

	merged, err := MergeBackupConfig(existing, input, s.encryptor)
	if err != nil {
		return nil, err
	}
	if err := checkStorageConfigured(merged); err != nil {
		return nil, err
	}

	if err := s.settings.SaveBackupConfig(ctx, merged); err != nil {
		return nil, errors.Wrap(err, "failed to save backup configuration")
	}
	logger.Info("backup configuration updated",
		zap.Bool("enabled", merged.Enabled),
		zap.String("storage_type", merged.StorageType.String()))

	if s.reloader != nil {
		if err := s.reloader.ReloadSchedule(ctx); err != nil {
			logger.Error("failed to reload backup schedule", zap.Error(err))
		}
	}
	return merged.View(), nil
}

// MergeBackupConfig applies input over existing. Nested configs absent from the input keep
// their stored (encrypted) values; present ones are replaced and their secrets encrypted.
func MergeBackupConfig(existing *types.BackupConfig, input types.BackupConfigInput, enc misc.Encryptor) (*types.BackupConfig, error) {
	if existing == nil {
		existing = &types.BackupConfig{}
	}

	merged := &types.BackupConfig{
		Enabled:       input.Enabled,
		Schedule:      existing.Schedule,
		RetentionDays: input.RetentionDays,
		StorageType:   input.StorageType,
		S3Config:      existing.S3Config,
		SFTPConfig:    existing.SFTPConfig,
		LocalConfig:   existing.LocalConfig,
	}
	if merged.RetentionDays == 0 {
		merged.RetentionDays = types.DefaultRetentionDays
	}
	if input.Schedule != nil {
		merged.Schedule = input.Schedule
	}

	if in := input.S3Config; in != nil {
		accessKey, err := enc.Encrypt(in.AccessKeyID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encrypt access key")
		}
		secretKey, err := enc.Encrypt(in.SecretAccessKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encrypt secret key")
		}

		region := in.Region
		if region == "" {
			region = types.DefaultS3Region
		}
		merged.S3Config = &types.S3Config{
			EndpointURL:              in.EndpointURL,
			BucketName:               in.BucketName,
			Region:                   region,
			AccessKeyIDEncrypted:     accessKey,
			SecretAccessKeyEncrypted: secretKey,
		}
	}

	if in := input.SFTPConfig; in != nil {
		password, err := enc.Encrypt(in.Password)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encrypt password")
		}

		port, remotePath := in.Port, in.RemotePath
		if port == 0 {
			port = types.DefaultSFTPPort
		}
		if remotePath == "" {
			remotePath = types.DefaultSFTPRemotePath
		}
		merged.SFTPConfig = &types.SFTPConfig{
			Host:              in.Host,
			Port:              port,
			Username:          in.Username,
			PasswordEncrypted: password,
			RemotePath:        remotePath,
		}
	}

	if input.LocalConfig != nil {
		merged.LocalConfig = &types.LocalConfig{Path: input.LocalConfig.Path}
	}
	if merged.LocalConfig == nil {
		merged.LocalConfig = &types.LocalConfig{Path: types.DefaultLocalBackupPath}
	}
	return merged, nil
}

func checkStorageConfigured(cfg *types.BackupConfig) error {
	switch cfg.StorageType {
	case types.StorageTypeS3:
		if cfg.S3Config == nil {
			return types.NewValidationError("S3 configuration is required for s3 storage")
		}
	case types.StorageTypeSFTP:
		if cfg.SFTPConfig == nil {
			return types.NewValidationError("SFTP configuration is required for sftp storage")
		}
	}
	if cfg.Enabled && cfg.Schedule == nil {
		return types.NewValidationError("a schedule is required when backups are enabled")
	}
	return nil
}

// ValidationMessage turns validator errors into a single ValidationError
func ValidationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewValidationError(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Namespace(), fe.Tag()))
	}
	return types.NewValidationError(strings.Join(msgs, "; "))
}
