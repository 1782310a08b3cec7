package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scholarship-exam-service/internal/domain"
)

func (h *handlers) startAttempt(w http.ResponseWriter, r *http.Request) {
	paper, err := h.svc.Attempts.Start(r.Context(), identity(r).UID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, paper)
}

type submitRequest struct {
	Answers []domain.SubmittedAnswer `json:"answers"`
}

func (h *handlers) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.Attempts.Submit(r.Context(), identity(r).UID, chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) result(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Attempts.Result(r.Context(), identity(r).UID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
