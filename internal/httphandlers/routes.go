package httphandlers

import (
	"crypto/subtle"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"net/http"
)

func Routes(h *ApiHandler, accessKey string) chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(rr chi.Router) {
		rr.Get("/h", func(writer http.ResponseWriter, request *http.Request) {
			ok(writer, "Hoi, we're live!", struct{}{})
		})

		rr.Group(func(pr chi.Router) {
			pr.Use(requireAccessKey(accessKey))

			pr.Get("/backups", h.ListBackups)
			pr.Post("/backups/trigger", h.TriggerBackup)
			pr.Post("/backups/test-connection", h.TestConnection)
			pr.Get("/backups/schedule", h.ScheduleStatus)
			pr.Get("/backups/{id}", h.GetBackup)
			pr.Delete("/backups/{id}", h.DeleteBackup)
			pr.Post("/backups/{id}/restore", h.RestoreBackup)
			pr.Get("/backups/{id}/download-url", h.DownloadURL)
			pr.Get("/backups/{id}/download", h.DownloadBackup)

			pr.Get("/settings/backup", h.GetBackupConfig)
			pr.Put("/settings/backup", h.UpdateBackupConfig)
		})
	})
	return r
}

// requireAccessKey rejects requests without the master access key. An empty key disables the check.
func requireAccessKey(accessKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if accessKey != "" {
				got := r.Header.Get(authorizationHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(accessKey)) != 1 {
					unauthorized(w, errors.New("invalid access key"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
