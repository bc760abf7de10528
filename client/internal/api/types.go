package api

import (
	"github.com/opentracker-es/opentracker-api/internal/types"
)

// The server payloads are shared with the API so the two never drift apart.
type (
	Backup             = types.BackupRecord
	BackupList         = types.BackupList
	RestoreResult      = types.RestoreResult
	DownloadURL        = types.DownloadURL
	ScheduleStatus     = types.ScheduleStatus
	BackupConfig       = types.BackupConfigView
	BackupConfigInput  = types.BackupConfigInput
	TestConnectionArgs = types.TestConnectionParams
	TestConnectionResp = types.TestConnectionResult
)
