package httphandlers

import (
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/service"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"net/http"
	"os"
)

type (
	ApiHandler struct {
		backups   service.BackupService
		scheduler service.SchedulerService
		settings  service.SettingsService
		validate  *validator.Validate
	}
)

func NewApiHandler(backups service.BackupService, scheduler service.SchedulerService, settings service.SettingsService) *ApiHandler {
	return &ApiHandler{
		backups:   backups,
		scheduler: scheduler,
		settings:  settings,
		validate:  service.NewValidator(),
	}
}

func backupID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.New("invalid backup ID")
	}
	return id, nil
}

func (handler *ApiHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := handler.backups.ListBackups(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	ok(w, "success", list)
}

func (handler *ApiHandler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	record, err := handler.backups.CreateBackup(r.Context(), types.TriggerManual)
	if err != nil {
		handleError(w, errors.Wrap(err, "backup failed"))
		return
	}

	ok(w, "backup completed", record)
}

func (handler *ApiHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := backupID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	record, err := handler.backups.GetBackup(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	ok(w, "success", record)
}

func (handler *ApiHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	id, err := backupID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.backups.DeleteBackup(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	ok(w, "backup deleted", nil)
}

func (handler *ApiHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	id, err := backupID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	if !body.Confirm {
		badRequest(w, errors.New("confirmation required, set confirm=true to continue"))
		return
	}

	logger.Warn("restore requested", zap.String("id", id.String()))
	result, err := handler.backups.RestoreBackup(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	ok(w, result.Message, result)
}

func (handler *ApiHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := backupID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	record, err := handler.backups.GetBackup(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	if record.StorageType == types.StorageTypeLocal {
		ok(w, "success", types.DownloadURL{
			URL: fmt.Sprintf("/v1/backups/%s/download", id),
		})
		return
	}

	url, err := handler.backups.GetDownloadURL(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if url == "" {
		badRequest(w, fmt.Errorf("download URL not supported for %s storage", record.StorageType))
		return
	}

	expires := int(service.DownloadURLExpiry.Seconds())
	ok(w, "success", types.DownloadURL{URL: url, ExpiresInSeconds: &expires})
}

func (handler *ApiHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, err := backupID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	record, err := handler.backups.GetBackup(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if record.StorageType != types.StorageTypeLocal {
		badRequest(w, errors.New("direct download is only available for local storage, use download-url instead"))
		return
	}

	path, err := handler.backups.GetLocalBackupPath(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	f, err := os.Open(path)
	if path == "" || os.IsNotExist(err) {
		notFound(w, errors.New("backup file not found"))
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		serverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	http.ServeContent(w, r, record.Filename, stat.ModTime(), f)
}

func (handler *ApiHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var params types.TestConnectionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	if err := handler.validate.StructCtx(r.Context(), params); err != nil {
		handleError(w, service.ValidationMessage(err))
		return
	}

	result := handler.backups.TestConnection(r.Context(), params)
	ok(w, result.Message, result)
}

func (handler *ApiHandler) ScheduleStatus(w http.ResponseWriter, r *http.Request) {
	ok(w, "success", types.ScheduleStatus{
		Scheduled:   handler.scheduler.IsBackupScheduled(),
		NextRunTime: handler.scheduler.GetNextRunTime(),
	})
}

func (handler *ApiHandler) GetBackupConfig(w http.ResponseWriter, r *http.Request) {
	view, err := handler.settings.GetBackupConfig(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	ok(w, "success", view)
}

func (handler *ApiHandler) UpdateBackupConfig(w http.ResponseWriter, r *http.Request) {
	var input types.BackupConfigInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	view, err := handler.settings.UpdateBackupConfig(r.Context(), input)
	if err != nil {
		handleError(w, err)
		return
	}

	ok(w, "backup configuration updated", view)
}
