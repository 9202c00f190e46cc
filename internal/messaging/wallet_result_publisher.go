package messaging

import (
	"context"
	"fmt"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/protocol"
)

// WalletResultPublisher reports command outcomes from the wallet
// service back to the orchestrator. Business failures travel as FAILED
// results, never as errors.
type WalletResultPublisher struct {
	publisher gateway.MessagePublisher
}

func NewWalletResultPublisher(publisher gateway.MessagePublisher) *WalletResultPublisher {
	return &WalletResultPublisher{publisher: publisher}
}

// PublishSuccess reports an applied (or replayed) ledger entry.
func (p *WalletResultPublisher) PublishSuccess(ctx context.Context, command protocol.WalletCommandPayload, commandEnv protocol.Envelope, entry *domain.LedgerEntry) error {
	runningBalance := entry.RunningBalanceMinorUnits
	payload := protocol.WalletResultPayload{
		CommandID:                command.CommandID,
		TransferID:               command.TransferID,
		WalletID:                 command.WalletID,
		Type:                     resultType(commandEnv.MessageType),
		Status:                   protocol.ResultSucceeded,
		AmountMinorUnits:         entry.AmountMinorUnits,
		RunningBalanceMinorUnits: &runningBalance,
		Reference:                command.Reference,
	}
	return p.publish(ctx, commandEnv, payload)
}

// PublishFailure reports a business-rule rejection of the command.
func (p *WalletResultPublisher) PublishFailure(ctx context.Context, command protocol.WalletCommandPayload, commandEnv protocol.Envelope, reason string) error {
	payload := protocol.WalletResultPayload{
		CommandID:        command.CommandID,
		TransferID:       command.TransferID,
		WalletID:         command.WalletID,
		Type:             resultType(commandEnv.MessageType),
		Status:           protocol.ResultFailed,
		AmountMinorUnits: command.AmountMinorUnits,
		Reference:        command.Reference,
		FailureReason:    reason,
	}
	return p.publish(ctx, commandEnv, payload)
}

func (p *WalletResultPublisher) publish(ctx context.Context, commandEnv protocol.Envelope, payload protocol.WalletResultPayload) error {
	env, err := protocol.NewEnvelope(protocol.TypeWalletTransactionResult, commandEnv.CorrelationID, commandEnv.MessageID, payload)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ctx, WalletEventExchange, env.MessageType, env); err != nil {
		return fmt.Errorf("publish result for command %s: %w", payload.CommandID, err)
	}
	return nil
}

func resultType(commandMessageType string) protocol.ResultType {
	if commandMessageType == protocol.TypeWalletDebitCommand {
		return protocol.ResultDebit
	}
	return protocol.ResultCredit
}
