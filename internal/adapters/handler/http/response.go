package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// clientClosedRequest is the de facto status for a request whose client went
// away before it was answered. Nobody reads it, but access logs do.
const clientClosedRequest = 499

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its status. Anything unknown is logged
// and answered with a 500 that hides the cause.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == clientClosedRequest {
		log.WithError(err).WithField("path", r.URL.Path).Debug("client went away")
		w.WriteHeader(status)
		return
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		log.WithError(err).WithField("path", r.URL.Path).Warn("storage unavailable")
		msg = domain.ErrStorageUnavailable.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPollNotFound), errors.Is(err, domain.ErrVoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPollID),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, domain.ErrChannelDisconnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return clientClosedRequest
	}
	return http.StatusInternalServerError
}
