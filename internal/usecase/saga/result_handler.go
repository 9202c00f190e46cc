package saga

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Brankond/Momentum/internal/protocol"
)

// ResultHandler consumes wallet result messages for the orchestrator.
type ResultHandler struct {
	service *Service
	log     zerolog.Logger
}

func NewResultHandler(service *Service, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{service: service, log: log}
}

func (h *ResultHandler) Handle(ctx context.Context, body []byte) error {
	env, payload, err := protocol.DecodeWalletResult(body)
	if err != nil {
		return err
	}

	if err := h.service.HandleWalletResult(ctx, env, payload); err != nil {
		if IsProtocolFault(err) {
			// The result references a transfer or command this service
			// never stored. Redelivery cannot fix that; alert loudly.
			h.log.Error().
				Str("transfer_id", payload.TransferID.String()).
				Str("command_id", payload.CommandID.String()).
				Err(err).
				Msg("wallet result references unknown state")
		}
		return err
	}
	return nil
}
