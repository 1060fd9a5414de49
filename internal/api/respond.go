package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/paginate"
	"github.com/rescape/region-store/internal/scope"
	"github.com/rescape/region-store/internal/store"
)

// Status is the tri-state a client renders: still loading, failed, or
// ready with data.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusOK      Status = "ok"
)

// Response is the envelope of every API response.
type Response struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// errBadRequest marks request errors the caller can fix.
var errBadRequest = errors.New("bad request")

type badRequest struct {
	msg string
}

func (e badRequest) Error() string        { return e.msg }
func (e badRequest) Is(target error) bool { return target == errBadRequest }

func respondJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, Response{Status: StatusOK, Data: data})
}

// respondLoading reports that a dependency, usually the user's identity,
// is not available yet. Clients retry later.
func respondLoading(w http.ResponseWriter) {
	respondJSON(w, http.StatusAccepted, Response{Status: StatusLoading})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondJSON(w, status, Response{Status: StatusError, Error: err.Error()})
}

func errorStatus(err error) int {
	var pfe *paginate.PageFetchError
	var pe *scope.PersistError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, scope.ErrMalformedAssociation),
		errors.Is(err, store.ErrUnknownField),
		errors.Is(err, paginate.ErrInvalidPageSize),
		errors.Is(err, paginate.ErrMissingPage):
		return http.StatusBadRequest
	case errors.As(err, &pfe), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
