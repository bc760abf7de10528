package types

import (
	"github.com/google/uuid"
	"time"
)

type (
	BackupStatus  string
	BackupTrigger string
	StorageType   string

	BackupRecord struct {
		ID               uuid.UUID     `json:"id" gorm:"primaryKey"`
		Filename         string        `json:"filename"`
		StoragePath      string        `json:"storage_path"`
		StorageType      StorageType   `json:"storage_type"`
		SizeBytes        int64         `json:"size_bytes"`
		SizeHuman        string        `json:"size_human"`
		CreatedAt        time.Time     `json:"created_at" gorm:"index"`
		CompletedAt      *time.Time    `json:"completed_at"`
		DurationSeconds  *int          `json:"duration_seconds"`
		Status           BackupStatus  `json:"status" gorm:"index"`
		Trigger          BackupTrigger `json:"trigger"`
		ErrorMessage     *string       `json:"error_message"`
		CollectionsCount *int          `json:"collections_count"`
		DocumentsCount   *int          `json:"documents_count"`
		ChecksumSHA256   *string       `json:"checksum_sha256"`
	}

	BackupList struct {
		Backups        []*BackupRecord `json:"backups"`
		TotalCount     int             `json:"total_count"`
		TotalSizeBytes int64           `json:"total_size_bytes"`
		TotalSizeHuman string          `json:"total_size_human"`
	}

	RestoreResult struct {
		Status             string    `json:"status"`
		Message            string    `json:"message"`
		PreRestoreBackupID uuid.UUID `json:"pre_restore_backup_id"`
	}

	DownloadURL struct {
		URL              string `json:"download_url"`
		ExpiresInSeconds *int   `json:"expires_in_seconds"`
	}

	ScheduleStatus struct {
		Scheduled   bool       `json:"scheduled"`
		NextRunTime *time.Time `json:"next_run_time"`
	}
)

const (
	BackupStatusInProgress BackupStatus = "in_progress"
	BackupStatusCompleted  BackupStatus = "completed"
	BackupStatusFailed     BackupStatus = "failed"

	TriggerScheduled  BackupTrigger = "scheduled"
	TriggerManual     BackupTrigger = "manual"
	TriggerPreRestore BackupTrigger = "pre_restore"

	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeSFTP  StorageType = "sftp"

	RestoreStatusSuccess = "success"
	RestoreStatusFailed  = "failed"
)

func (s StorageType) String() string {
	return string(s)
}

func (s StorageType) Valid() bool {
	switch s {
	case StorageTypeLocal, StorageTypeS3, StorageTypeSFTP:
		return true
	}
	return false
}

// Terminal reports whether the record reached its final state
func (b *BackupRecord) Terminal() bool {
	return b.Status == BackupStatusCompleted || b.Status == BackupStatusFailed
}

// MarkCompleted moves the record to completed and fills in the archive facts
func (b *BackupRecord) MarkCompleted(at time.Time, size int64, sizeHuman, checksum string, collections, documents int) {
	duration := int(at.Sub(b.CreatedAt).Seconds())
	b.Status = BackupStatusCompleted
	b.CompletedAt = &at
	b.DurationSeconds = &duration
	b.SizeBytes = size
	b.SizeHuman = sizeHuman
	b.ChecksumSHA256 = &checksum
	b.CollectionsCount = &collections
	b.DocumentsCount = &documents
}

// MarkFailed moves the record to failed. Archive facts are cleared since no usable archive exists.
func (b *BackupRecord) MarkFailed(at time.Time, err error) {
	msg := err.Error()
	b.Status = BackupStatusFailed
	b.CompletedAt = &at
	b.ErrorMessage = &msg
	b.SizeBytes = 0
	b.SizeHuman = ""
	b.ChecksumSHA256 = nil
	b.CollectionsCount = nil
	b.DocumentsCount = nil
}
