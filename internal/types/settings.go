package types

import (
	"time"
)

const (
	DefaultRetentionDays   = 730
	DefaultS3Region        = "us-west-004"
	DefaultSFTPPort        = 22
	DefaultSFTPRemotePath  = "/backups/opentracker/"
	DefaultLocalBackupPath = "/app/backups"

	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

type (
	// Settings is the single persisted settings row. Only the backup section is managed here.
	Settings struct {
		ID        uint          `gorm:"primaryKey"`
		Backup    *BackupConfig `gorm:"serializer:json"`
		UpdatedAt time.Time
	}

	Schedule struct {
		Frequency  string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
		Time       string `json:"time" validate:"required,clock"`
		DayOfWeek  *int   `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
		DayOfMonth *int   `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=28"`
	}

	S3Config struct {
		EndpointURL              string `json:"endpoint_url"`
		BucketName               string `json:"bucket_name"`
		Region                   string `json:"region"`
		AccessKeyIDEncrypted     string `json:"access_key_id_encrypted"`
		SecretAccessKeyEncrypted string `json:"secret_access_key_encrypted"`
	}

	SFTPConfig struct {
		Host              string `json:"host"`
		Port              int    `json:"port"`
		Username          string `json:"username"`
		PasswordEncrypted string `json:"password_encrypted"`
		RemotePath        string `json:"remote_path"`
	}

	LocalConfig struct {
		Path string `json:"path" validate:"required"`
	}

	// BackupConfig is the stored backup configuration. Credential fields hold ciphertext
	// and must never leave the service, see BackupConfigView.
	BackupConfig struct {
		Enabled       bool         `json:"enabled"`
		Schedule      *Schedule    `json:"schedule,omitempty"`
		RetentionDays int          `json:"retention_days"`
		StorageType   StorageType  `json:"storage_type"`
		S3Config      *S3Config    `json:"s3_config,omitempty"`
		SFTPConfig    *SFTPConfig  `json:"sftp_config,omitempty"`
		LocalConfig   *LocalConfig `json:"local_config,omitempty"`
	}

	S3ConfigInput struct {
		EndpointURL     string `json:"endpoint_url" validate:"required,url"`
		BucketName      string `json:"bucket_name" validate:"required"`
		Region          string `json:"region"`
		AccessKeyID     string `json:"access_key_id" validate:"required"`
		SecretAccessKey string `json:"secret_access_key" validate:"required"`
	}

	SFTPConfigInput struct {
		Host       string `json:"host" validate:"required"`
		Port       int    `json:"port" validate:"omitempty,min=1,max=65535"`
		Username   string `json:"username" validate:"required"`
		Password   string `json:"password" validate:"required"`
		RemotePath string `json:"remote_path"`
	}

	// BackupConfigInput carries plain credentials from the operator. Nested configs
	// that are nil keep whatever is stored.
	BackupConfigInput struct {
		Enabled       bool             `json:"enabled"`
		Schedule      *Schedule        `json:"schedule" validate:"omitempty"`
		RetentionDays int              `json:"retention_days" validate:"omitempty,min=1,max=3650"`
		StorageType   StorageType      `json:"storage_type" validate:"required,oneof=local s3 sftp"`
		S3Config      *S3ConfigInput   `json:"s3_config" validate:"omitempty"`
		SFTPConfig    *SFTPConfigInput `json:"sftp_config" validate:"omitempty"`
		LocalConfig   *LocalConfig     `json:"local_config" validate:"omitempty"`
	}

	// BackupConfigView is the redacted projection returned to clients
	BackupConfigView struct {
		Enabled         bool        `json:"enabled"`
		Schedule        *Schedule   `json:"schedule"`
		RetentionDays   int         `json:"retention_days"`
		StorageType     StorageType `json:"storage_type"`
		S3Configured    bool        `json:"s3_configured"`
		S3Endpoint      string      `json:"s3_endpoint,omitempty"`
		S3Bucket        string      `json:"s3_bucket,omitempty"`
		SFTPConfigured  bool        `json:"sftp_configured"`
		SFTPHost        string      `json:"sftp_host,omitempty"`
		SFTPPath        string      `json:"sftp_path,omitempty"`
		LocalConfigured bool        `json:"local_configured"`
		LocalPath       string      `json:"local_path,omitempty"`
	}

	TestConnectionParams struct {
		StorageType StorageType      `json:"storage_type" validate:"required,oneof=local s3 sftp"`
		S3Config    *S3ConfigInput   `json:"s3_config" validate:"omitempty"`
		SFTPConfig  *SFTPConfigInput `json:"sftp_config" validate:"omitempty"`
		LocalConfig *LocalConfig     `json:"local_config" validate:"omitempty"`
	}

	TestConnectionResult struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
)

// View returns the redacted projection of the config
func (c *BackupConfig) View() *BackupConfigView {
	if c == nil {
		return nil
	}

	view := &BackupConfigView{
		Enabled:       c.Enabled,
		Schedule:      c.Schedule,
		RetentionDays: c.RetentionDays,
		StorageType:   c.StorageType,
	}
	if c.S3Config != nil {
		view.S3Configured = true
		view.S3Endpoint = c.S3Config.EndpointURL
		view.S3Bucket = c.S3Config.BucketName
	}
	if c.SFTPConfig != nil {
		view.SFTPConfigured = true
		view.SFTPHost = c.SFTPConfig.Host
		view.SFTPPath = c.SFTPConfig.RemotePath
	}
	if c.LocalConfig != nil {
		view.LocalConfigured = true
		view.LocalPath = c.LocalConfig.Path
	}
	return view
}

// Configured reports whether a backup can be attempted with this config
func (c *BackupConfig) Configured() bool {
	return c != nil && c.StorageType != ""
}

// Retention returns the configured retention, falling back to the default
func (c *BackupConfig) Retention() int {
	if c == nil || c.RetentionDays <= 0 {
		return DefaultRetentionDays
	}
	return c.RetentionDays
}
