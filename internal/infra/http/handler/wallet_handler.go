package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/money"
	"github.com/Brankond/Momentum/internal/usecase/ledger"
)

// WalletHandler exposes wallet provisioning and direct ledger
// operations over HTTP.
type WalletHandler struct {
	service *ledger.Service
}

func NewWalletHandler(service *ledger.Service) *WalletHandler {
	return &WalletHandler{service: service}
}

type CreateWalletRequest struct {
	OwnerID                  uuid.UUID `json:"owner_id"`
	Currency                 string    `json:"currency"`
	InitialBalanceMinorUnits int64     `json:"initial_balance_minor_units"`
}

type WalletResponse struct {
	WalletID          string    `json:"wallet_id"`
	OwnerID           string    `json:"owner_id"`
	Currency          string    `json:"currency"`
	BalanceMinorUnits int64     `json:"balance_minor_units"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

func toWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		WalletID:          w.ID.String(),
		OwnerID:           w.OwnerID.String(),
		Currency:          w.Currency,
		BalanceMinorUnits: w.BalanceMinorUnits,
		Status:            string(w.Status),
		CreatedAt:         w.CreatedAt,
	}
}

type LedgerOperationRequest struct {
	AmountMinorUnits int64          `json:"amount_minor_units"`
	Reference        string         `json:"reference"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type LedgerEntryResponse struct {
	EntryID                  string         `json:"entry_id"`
	WalletID                 string         `json:"wallet_id"`
	Direction                string         `json:"direction"`
	AmountMinorUnits         int64          `json:"amount_minor_units"`
	RunningBalanceMinorUnits int64          `json:"running_balance_minor_units"`
	Reference                string         `json:"reference"`
	Description              string         `json:"description,omitempty"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
	OccurredAt               time.Time      `json:"occurred_at"`
}

func toLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		EntryID:                  e.ID.String(),
		WalletID:                 e.WalletID.String(),
		Direction:                string(e.Direction),
		AmountMinorUnits:         e.AmountMinorUnits,
		RunningBalanceMinorUnits: e.RunningBalanceMinorUnits,
		Reference:                e.Reference,
		Description:              e.Description,
		Metadata:                 e.Metadata,
		OccurredAt:               e.OccurredAt,
	}
}

func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), ledger.CreateWalletInput{
		OwnerID:                  req.OwnerID,
		Currency:                 req.Currency,
		InitialBalanceMinorUnits: req.InitialBalanceMinorUnits,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateWallet):
			respondError(w, http.StatusConflict, "wallet already exists for owner and currency")
		case isValidationError(err):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("failed to create wallet")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), id)
	if err != nil {
		h.respondWalletError(w, err, "failed to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (h *WalletHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		h.respondWalletError(w, err, "failed to load ledger")
		return
	}

	response := make([]LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		response = append(response, toLedgerEntryResponse(&entries[i]))
	}
	respondJSON(w, http.StatusOK, response)
}

// Credit applies a direct credit outside any transfer saga, for
// top-ups and manual adjustments.
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.applyOperation(w, r, h.service.Credit)
}

// Debit applies a direct debit outside any transfer saga.
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.applyOperation(w, r, h.service.Debit)
}

func (h *WalletHandler) applyOperation(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, input ledger.ApplyInput) (*domain.LedgerEntry, error),
) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	var req LedgerOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	entry, err := apply(r.Context(), ledger.ApplyInput{
		WalletID:    id,
		AmountMinor: req.AmountMinorUnits,
		Reference:   req.Reference,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			respondError(w, http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, domain.ErrWalletInactive):
			respondError(w, http.StatusUnprocessableEntity, "wallet is not active")
		case errors.Is(err, domain.ErrWalletNotFound):
			respondError(w, http.StatusNotFound, "wallet not found")
		case isValidationError(err):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("failed to apply ledger operation")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, toLedgerEntryResponse(entry))
}

func (h *WalletHandler) respondWalletError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, domain.ErrWalletNotFound) {
		respondError(w, http.StatusNotFound, "wallet not found")
		return
	}
	log.Error().Err(err).Msg(logMsg)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func walletID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "walletID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid wallet id")
		return uuid.Nil, false
	}
	return id, true
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, money.ErrUnknownCurrency) ||
		errors.Is(err, money.ErrCurrencyMismatch)
}
