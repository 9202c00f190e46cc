package messaging

import (
	"context"
	"fmt"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/protocol"
)

// WalletCommandPublisher turns transfer commands into wallet command
// messages. Reversals are published as credit commands against the
// source wallet under a derived reference so the ledger does not
// dedupe them against the original debit.
type WalletCommandPublisher struct {
	publisher gateway.MessagePublisher
}

func NewWalletCommandPublisher(publisher gateway.MessagePublisher) *WalletCommandPublisher {
	return &WalletCommandPublisher{publisher: publisher}
}

func (p *WalletCommandPublisher) Publish(ctx context.Context, transfer *domain.Transfer, command *domain.TransferCommand) error {
	payload := protocol.WalletCommandPayload{
		CommandID:        command.ID,
		TransferID:       transfer.ID,
		WalletID:         command.WalletID,
		AmountMinorUnits: command.AmountMinorUnits,
		Currency:         transfer.Currency,
		Reference:        CommandReference(transfer, command),
		Description:      commandDescription(transfer, command),
		Metadata:         transfer.Metadata,
	}

	env, err := protocol.NewEnvelope(messageType(command.Kind), transfer.CorrelationID, command.ID, payload)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, WalletCommandExchange, env.MessageType, env); err != nil {
		return fmt.Errorf("publish %s command %s: %w", command.Kind, command.ID, err)
	}
	return nil
}

// CommandReference is the wallet-side dedupe key for a command. The
// reversal gets its own reference: it must create a second ledger
// entry on the source wallet, not replay the original debit.
func CommandReference(transfer *domain.Transfer, command *domain.TransferCommand) string {
	if command.Kind == domain.CommandReversal {
		return transfer.Reference + "/reversal"
	}
	return transfer.Reference
}

func commandDescription(transfer *domain.Transfer, command *domain.TransferCommand) string {
	if command.Kind == domain.CommandReversal {
		return fmt.Sprintf("reversal of %s", transfer.Reference)
	}
	return transfer.Description
}

func messageType(kind domain.CommandKind) string {
	if kind == domain.CommandDebit {
		return protocol.TypeWalletDebitCommand
	}
	// Credits and reversals both move money into the target wallet.
	return protocol.TypeWalletCreditCommand
}
