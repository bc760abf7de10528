package api

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"io"
	"net/http"
	"strings"
	"time"
)

type (
	Service interface {
		BackupService
		Ping(ctx context.Context) error
	}

	BackupService interface {
		ListBackups(ctx context.Context) (*BackupList, error)
		TriggerBackup(ctx context.Context) (*Backup, error)
		RestoreBackup(ctx context.Context, backupID uuid.UUID) (*RestoreResult, error)
		DeleteBackup(ctx context.Context, backupID uuid.UUID) error
		DownloadBackup(ctx context.Context, backupID uuid.UUID) (io.ReadCloser, error)
		ScheduleStatus(ctx context.Context) (*ScheduleStatus, error)
		TestConnection(ctx context.Context, args TestConnectionArgs) (*TestConnectionResp, error)
		GetBackupConfig(ctx context.Context) (*BackupConfig, error)
		UpdateBackupConfig(ctx context.Context, input BackupConfigInput) (*BackupConfig, error)
	}
)

type service struct {
	apiClient Client

	// presigned links point straight at the object store and must not carry the access key
	httpClient *http.Client
}

func NewService(apiClient Client) Service {
	return service{
		apiClient:  apiClient,
		httpClient: &http.Client{Timeout: time.Hour},
	}
}

func (s service) Ping(ctx context.Context) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodGet,
		Path:   "backups/schedule",
	})
}

func (s service) ListBackups(ctx context.Context) (*BackupList, error) {
	var response struct {
		Data BackupList `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "backups",
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (s service) TriggerBackup(ctx context.Context) (*Backup, error) {
	var response struct {
		Data Backup `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "backups/trigger",
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (s service) RestoreBackup(ctx context.Context, backupID uuid.UUID) (*RestoreResult, error) {
	type body struct {
		Confirm bool `json:"confirm"`
	}

	var response struct {
		Data RestoreResult `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("backups/%s/restore", backupID),
		Body:     body{Confirm: true},
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (s service) DeleteBackup(ctx context.Context, backupID uuid.UUID) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("backups/%s", backupID),
	})
}

// DownloadBackup streams the archive. Local backups come through the API, remote ones
// are fetched from the presigned link the server hands out.
func (s service) DownloadBackup(ctx context.Context, backupID uuid.UUID) (io.ReadCloser, error) {
	var response struct {
		Data DownloadURL `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("backups/%s/download-url", backupID),
		Response: &response,
	})
	if err != nil {
		return nil, err
	}

	link := response.Data.URL
	if strings.HasPrefix(link, "/") {
		return s.apiClient.Download(ctx, Params{
			Method: http.MethodGet,
			Path:   strings.TrimPrefix(link, "/v1/"),
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Errorf("storage responded with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s service) ScheduleStatus(ctx context.Context) (*ScheduleStatus, error) {
	var response struct {
		Data ScheduleStatus `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "backups/schedule",
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (s service) TestConnection(ctx context.Context, args TestConnectionArgs) (*TestConnectionResp, error) {
	var response struct {
		Data TestConnectionResp `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "backups/test-connection",
		Body:     args,
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (s service) GetBackupConfig(ctx context.Context) (*BackupConfig, error) {
	var response struct {
		Data *BackupConfig `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "settings/backup",
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (s service) UpdateBackupConfig(ctx context.Context, input BackupConfigInput) (*BackupConfig, error) {
	var response struct {
		Data *BackupConfig `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPut,
		Path:     "settings/backup",
		Body:     input,
		Response: &response,
	})
	if err != nil {
		return nil, err
	}
	return response.Data, nil
}
