package http

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
	log     logrus.FieldLogger
}

func NewUserHandler(service ports.UserService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if user == nil {
		// token outlived its user
		writeError(w, r, h.log, domain.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
