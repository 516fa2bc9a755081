package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type PollHandler struct {
	service ports.PollService
	log     logrus.FieldLogger
}

func NewPollHandler(service ports.PollService, log logrus.FieldLogger) *PollHandler {
	return &PollHandler{
		service: service,
		log:     log,
	}
}

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}

	input := ports.CreatePollInput{
		Title:   req.Title,
		Options: req.Options,
	}

	poll, err := h.service.Create(r.Context(), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, poll)
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.service.GetPoll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

// ListPolls serves the newest polls first. Query params: page (from 1) and
// q, a case-insensitive title filter.
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	input := ports.ListPollsInput{
		Page:  1,
		Query: r.URL.Query().Get("q"),
	}
	if p := r.URL.Query().Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			writeError(w, r, h.log, fmt.Errorf("%w: page must be a positive integer", domain.ErrInvalidInput))
			return
		}
		input.Page = page
	}

	polls, err := h.service.ListPolls(r.Context(), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, polls)
}
