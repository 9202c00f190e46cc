package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/usecase/saga"
)

// TransferHandler exposes the transfer orchestrator over HTTP.
type TransferHandler struct {
	service *saga.Service
}

func NewTransferHandler(service *saga.Service) *TransferHandler {
	return &TransferHandler{service: service}
}

type CreateTransferRequest struct {
	SourceWalletID      uuid.UUID      `json:"source_wallet_id"`
	DestinationWalletID uuid.UUID      `json:"destination_wallet_id"`
	AmountMinorUnits    int64          `json:"amount_minor_units"`
	Currency            string         `json:"currency"`
	Reference           string         `json:"reference"`
	Description         string         `json:"description,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type TransferResponse struct {
	TransferID          string         `json:"transfer_id"`
	SourceWalletID      string         `json:"source_wallet_id"`
	DestinationWalletID string         `json:"destination_wallet_id"`
	AmountMinorUnits    int64          `json:"amount_minor_units"`
	Currency            string         `json:"currency"`
	Reference           string         `json:"reference"`
	Status              string         `json:"status"`
	FailureStage        string         `json:"failure_stage,omitempty"`
	FailureReason       string         `json:"failure_reason,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

func toTransferResponse(t *domain.Transfer) TransferResponse {
	return TransferResponse{
		TransferID:          t.ID.String(),
		SourceWalletID:      t.SourceWalletID.String(),
		DestinationWalletID: t.DestinationWalletID.String(),
		AmountMinorUnits:    t.AmountMinorUnits,
		Currency:            t.Currency,
		Reference:           t.Reference,
		Status:              string(t.Status),
		FailureStage:        string(t.FailureStage),
		FailureReason:       t.FailureReason,
		Metadata:            t.Metadata,
		CreatedAt:           t.CreatedAt,
		CompletedAt:         t.CompletedAt,
	}
}

// Create accepts a transfer request and returns 202: the saga runs
// asynchronously and the response carries its initial state.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	transfer, err := h.service.InitiateTransfer(ctx, saga.InitiateTransferInput{
		SourceWalletID:      req.SourceWalletID,
		DestinationWalletID: req.DestinationWalletID,
		AmountMinorUnits:    req.AmountMinorUnits,
		Currency:            req.Currency,
		Reference:           req.Reference,
		Description:         req.Description,
		Metadata:            req.Metadata,
		IdempotencyKey:      r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIdempotencyConflict):
			respondError(w, http.StatusConflict, "idempotency key reused with a different request")
		case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("failed to initiate transfer")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, toTransferResponse(transfer))
}

// Get returns the current saga state for polling clients.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			respondError(w, http.StatusNotFound, "transfer not found")
			return
		}
		log.Error().Err(err).Msg("failed to load transfer")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
