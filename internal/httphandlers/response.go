package httphandlers

import (
	"encoding/json"
	"errors"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/logger"
	"go.uber.org/zap"
	"net/http"
)

const (
	authorizationHeader = "X-Access-Token"
)

type (
	response struct {
		Error   bool        `json:"error"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
)

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err)
}

func notFound(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, err)
}

func serverError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err)
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, err)
}

// handleError maps service errors onto status codes
func handleError(w http.ResponseWriter, err error) {
	var (
		verr *types.ValidationError
		cerr *types.ConfigurationError
		derr *misc.DecryptionError
	)

	switch {
	case errors.As(err, &verr):
		if verr.NotFound {
			notFound(w, err)
			return
		}
		badRequest(w, err)
	case errors.As(err, &cerr):
		badRequest(w, err)
	case errors.As(err, &derr):
		logger.Error("stored credentials cannot be decrypted, was SECRET_KEY changed?", zap.Error(err))
		serverError(w, err)
	default:
		serverError(w, err)
	}
}

func ok(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	r := response{
		Error:   false,
		Message: message,
		Data:    data,
	}
	b, _ := json.Marshal(r)
	w.Write(b)
}

func writeError(w http.ResponseWriter, errorCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorCode)
	errmsg := ""
	if err != nil {
		errmsg = err.Error()
	}

	r := response{
		Error:   true,
		Message: errmsg,
	}
	data, _ := json.Marshal(r)
	w.Write(data)
}
