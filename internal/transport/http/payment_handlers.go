package http

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"scholarship-exam-service/internal/domain"
)

type orderRequest struct {
	TestID string `json:"testId"`
	Phone  string `json:"phone"`
}

func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TestID == "" {
		writeError(w, r, domain.NewValidationError(map[string]string{"testId": "is required"}))
		return
	}
	payload, err := h.svc.Payments.CreateOrder(r.Context(), identity(r), req.TestID, req.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *handlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeError(w, r, domain.NewValidationError(map[string]string{"order_id": "is required"}))
		return
	}
	msg, err := h.svc.Payments.ConfirmOrder(r.Context(), identity(r).UID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// webhook always answers 200; failures are only logged.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error().Err(err).Msg("read webhook body")
	} else if err := h.svc.Payments.HandleWebhook(r.Context(), body,
		r.Header.Get("x-webhook-timestamp"), r.Header.Get("x-webhook-signature")); err != nil {
		log.Error().Err(err).Msg("webhook processing failed")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

type grantRequest struct {
	UID    string          `json:"uid"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *handlers) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UID == "" {
		writeError(w, r, domain.NewValidationError(map[string]string{"uid": "is required"}))
		return
	}
	payment, err := h.svc.Payments.Grant(r.Context(), req.UID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}
