package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/protocol"
)

// TransferEventPublisher announces transfer lifecycle outcomes on the
// transfer event exchange for downstream consumers.
type TransferEventPublisher struct {
	publisher gateway.MessagePublisher
}

func NewTransferEventPublisher(publisher gateway.MessagePublisher) *TransferEventPublisher {
	return &TransferEventPublisher{publisher: publisher}
}

func (p *TransferEventPublisher) PublishCompleted(ctx context.Context, transfer *domain.Transfer) error {
	payload := basePayload(transfer)
	completedAt := time.Now().UTC()
	if transfer.CompletedAt != nil {
		completedAt = *transfer.CompletedAt
	}
	payload.CompletedAt = &completedAt
	return p.publish(ctx, protocol.TypeTransferCompleted, transfer, payload)
}

func (p *TransferEventPublisher) PublishFailed(ctx context.Context, transfer *domain.Transfer, reason string) error {
	payload := basePayload(transfer)
	payload.FailureStage = string(transfer.FailureStage)
	payload.FailureReason = reason
	return p.publish(ctx, protocol.TypeTransferFailed, transfer, payload)
}

func (p *TransferEventPublisher) PublishCompensationRequested(ctx context.Context, transfer *domain.Transfer, reason string) error {
	payload := basePayload(transfer)
	payload.FailureStage = string(domain.StageCredit)
	payload.FailureReason = reason
	return p.publish(ctx, protocol.TypeTransferCompensationRequested, transfer, payload)
}

func (p *TransferEventPublisher) publish(ctx context.Context, messageType string, transfer *domain.Transfer, payload protocol.TransferEventPayload) error {
	env, err := protocol.NewEnvelope(messageType, transfer.CorrelationID, transfer.ID, payload)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ctx, TransferEventExchange, messageType, env); err != nil {
		return fmt.Errorf("publish %s for transfer %s: %w", messageType, transfer.ID, err)
	}
	return nil
}

func basePayload(transfer *domain.Transfer) protocol.TransferEventPayload {
	return protocol.TransferEventPayload{
		TransferID:          transfer.ID,
		SourceWalletID:      transfer.SourceWalletID,
		DestinationWalletID: transfer.DestinationWalletID,
		AmountMinorUnits:    transfer.AmountMinorUnits,
		Currency:            transfer.Currency,
		Reference:           transfer.Reference,
		Description:         transfer.Description,
		Metadata:            transfer.Metadata,
	}
}
