package saga

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/infra/memory"
	"github.com/Brankond/Momentum/internal/messaging"
	"github.com/Brankond/Momentum/internal/protocol"
)

type capturedMessage struct {
	Exchange   string
	RoutingKey string
	Envelope   protocol.Envelope
}

// capturingPublisher records everything published so tests can assert
// on the exact wire traffic.
type capturingPublisher struct {
	mu       sync.Mutex
	messages []capturedMessage
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	env, ok := body.(protocol.Envelope)
	if !ok {
		panic("published body is not an envelope")
	}
	p.messages = append(p.messages, capturedMessage{Exchange: exchange, RoutingKey: routingKey, Envelope: env})
	return nil
}

func (p *capturingPublisher) byType(messageType string) []capturedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedMessage
	for _, m := range p.messages {
		if m.Envelope.MessageType == messageType {
			out = append(out, m)
		}
	}
	return out
}

func (p *capturingPublisher) commandPayload(t *testing.T, m capturedMessage) protocol.WalletCommandPayload {
	t.Helper()
	var payload protocol.WalletCommandPayload
	require.NoError(t, json.Unmarshal(m.Envelope.Payload, &payload))
	return payload
}

type harness struct {
	service   *Service
	commands  *memory.CommandRepository
	publisher *capturingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	publisher := &capturingPublisher{}
	commands := memory.NewCommandRepository()
	service := NewService(
		memory.NewTransferRepository(),
		commands,
		memory.NewIdempotencyRecordRepository(),
		memory.NewTxManager(),
		messaging.NewWalletCommandPublisher(publisher),
		messaging.NewTransferEventPublisher(publisher),
		zerolog.Nop(),
	)
	return &harness{service: service, commands: commands, publisher: publisher}
}

func validInput() InitiateTransferInput {
	return InitiateTransferInput{
		SourceWalletID:      uuid.New(),
		DestinationWalletID: uuid.New(),
		AmountMinorUnits:    1500,
		Currency:            "EUR",
		Reference:           "order-1001",
		IdempotencyKey:      uuid.NewString(),
	}
}

// deliverResult feeds a wallet result for the given command kind back
// into the orchestrator, as if the wallet service had replied.
func (h *harness) deliverResult(t *testing.T, transfer *domain.Transfer, kind domain.CommandKind, status protocol.ResultStatus, reason string) {
	t.Helper()
	command, err := h.commands.GetByTransferAndKind(context.Background(), transfer.ID, kind)
	require.NoError(t, err)

	payload := protocol.WalletResultPayload{
		CommandID:        command.ID,
		TransferID:       transfer.ID,
		WalletID:         command.WalletID,
		Status:           status,
		AmountMinorUnits: command.AmountMinorUnits,
		FailureReason:    reason,
	}
	env := protocol.Envelope{
		MessageID:   uuid.New(),
		OccurredAt:  time.Now().UTC(),
		MessageType: protocol.TypeWalletTransactionResult,
	}
	require.NoError(t, h.service.HandleWalletResult(context.Background(), env, payload))
}

func (h *harness) transferState(t *testing.T, id uuid.UUID) *domain.Transfer {
	t.Helper()
	transfer, err := h.service.GetTransfer(context.Background(), id)
	require.NoError(t, err)
	return transfer
}

func TestInitiateTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	transfer, err := h.service.InitiateTransfer(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, domain.TransferDebitInProgress, transfer.Status)

	// Exactly one debit command on the wire, against the source wallet.
	debits := h.publisher.byType(protocol.TypeWalletDebitCommand)
	require.Len(t, debits, 1)
	assert.Equal(t, messaging.WalletCommandExchange, debits[0].Exchange)
	payload := h.publisher.commandPayload(t, debits[0])
	assert.Equal(t, transfer.SourceWalletID, payload.WalletID)
	assert.Equal(t, transfer.Reference, payload.Reference)
	assert.Equal(t, int64(1500), payload.AmountMinorUnits)

	// The credit leg exists but stays parked until the debit confirms.
	credit, err := h.commands.GetByTransferAndKind(ctx, transfer.ID, domain.CommandCredit)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandPending, credit.Status)
	assert.Empty(t, h.publisher.byType(protocol.TypeWalletCreditCommand))
}

func TestInitiateTransfer_IdempotentRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := validInput()

	first, err := h.service.InitiateTransfer(ctx, input)
	require.NoError(t, err)

	second, err := h.service.InitiateTransfer(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The retry must not dispatch a second debit.
	assert.Len(t, h.publisher.byType(protocol.TypeWalletDebitCommand), 1)
}

func TestInitiateTransfer_DivergentRetryRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := validInput()

	_, err := h.service.InitiateTransfer(ctx, input)
	require.NoError(t, err)

	divergent := input
	divergent.AmountMinorUnits = 9999
	_, err = h.service.InitiateTransfer(ctx, divergent)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestInitiateTransfer_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := map[string]func(in *InitiateTransferInput){
		"missing idempotency key": func(in *InitiateTransferInput) { in.IdempotencyKey = "" },
		"missing reference":       func(in *InitiateTransferInput) { in.Reference = "" },
		"same wallet":             func(in *InitiateTransferInput) { in.DestinationWalletID = in.SourceWalletID },
		"unknown currency":        func(in *InitiateTransferInput) { in.Currency = "ZZZ" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			_, err := h.service.InitiateTransfer(ctx, input)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	input := validInput()
	input.AmountMinorUnits = 0
	_, err := h.service.InitiateTransfer(ctx, input)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSaga_HappyPath(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")
	assert.Equal(t, domain.TransferCreditInProgress, h.transferState(t, transfer.ID).Status)

	// The credit goes to the destination wallet under the same
	// reference, so both legs share one dedupe key.
	credits := h.publisher.byType(protocol.TypeWalletCreditCommand)
	require.Len(t, credits, 1)
	payload := h.publisher.commandPayload(t, credits[0])
	assert.Equal(t, transfer.DestinationWalletID, payload.WalletID)
	assert.Equal(t, transfer.Reference, payload.Reference)

	h.deliverResult(t, transfer, domain.CommandCredit, protocol.ResultSucceeded, "")
	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)

	assert.Len(t, h.publisher.byType(protocol.TypeTransferCompleted), 1)
	assert.Empty(t, h.publisher.byType(protocol.TypeTransferFailed))
}

func TestSaga_DebitFailure(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultFailed, "insufficient funds")

	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferFailed, final.Status)
	assert.Equal(t, domain.StageDebit, final.FailureStage)
	assert.Equal(t, "insufficient funds", final.FailureReason)

	// Nothing moved, so no credit and no compensation.
	assert.Empty(t, h.publisher.byType(protocol.TypeWalletCreditCommand))
	assert.Len(t, h.publisher.byType(protocol.TypeTransferFailed), 1)
}

func TestSaga_CreditFailureTriggersCompensation(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")
	h.deliverResult(t, transfer, domain.CommandCredit, protocol.ResultFailed, "wallet is not active")

	state := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferCompensationPending, state.Status)
	assert.Equal(t, domain.StageCredit, state.FailureStage)

	// The reversal re-credits the source wallet under a derived
	// reference, so it cannot be deduped against the original debit.
	credits := h.publisher.byType(protocol.TypeWalletCreditCommand)
	require.Len(t, credits, 2)
	reversal := h.publisher.commandPayload(t, credits[1])
	assert.Equal(t, transfer.SourceWalletID, reversal.WalletID)
	assert.Equal(t, transfer.Reference+"/reversal", reversal.Reference)

	assert.Len(t, h.publisher.byType(protocol.TypeTransferCompensationRequested), 1)

	h.deliverResult(t, transfer, domain.CommandReversal, protocol.ResultSucceeded, "")
	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferFailedCompensated, final.Status)
	assert.Len(t, h.publisher.byType(protocol.TypeTransferFailed), 1)
}

func TestSaga_ReversalFailureEscalates(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")
	h.deliverResult(t, transfer, domain.CommandCredit, protocol.ResultFailed, "wallet closed")
	h.deliverResult(t, transfer, domain.CommandReversal, protocol.ResultFailed, "wallet suspended")

	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferCompensationFailed, final.Status)
	assert.True(t, final.IsTerminal())
}

func TestSaga_DuplicateResultIgnored(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")
	// The bus redelivers the same debit result.
	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")

	assert.Equal(t, domain.TransferCreditInProgress, h.transferState(t, transfer.ID).Status)
	assert.Len(t, h.publisher.byType(protocol.TypeWalletCreditCommand), 1)
}

func TestSaga_ResultAfterTerminalIgnored(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultFailed, "insufficient funds")
	require.Equal(t, domain.TransferFailed, h.transferState(t, transfer.ID).Status)

	// A stale duplicate of the same failure arrives after the saga
	// already terminated.
	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultFailed, "insufficient funds")
	assert.Equal(t, domain.TransferFailed, h.transferState(t, transfer.ID).Status)
	assert.Len(t, h.publisher.byType(protocol.TypeTransferFailed), 1)
}

// expiredRecordStore simulates idempotency records past their TTL:
// writes succeed, reads find nothing.
type expiredRecordStore struct {
	gateway.IdempotencyRecordRepository
}

func (s expiredRecordStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	return nil, nil
}

func (s expiredRecordStore) WithTx(tx gateway.TransactionObject) gateway.IdempotencyRecordRepository {
	return s
}

func TestInitiateTransfer_DivergentRetryRejectedAfterRecordExpiry(t *testing.T) {
	publisher := &capturingPublisher{}
	service := NewService(
		memory.NewTransferRepository(),
		memory.NewCommandRepository(),
		expiredRecordStore{memory.NewIdempotencyRecordRepository()},
		memory.NewTxManager(),
		messaging.NewWalletCommandPublisher(publisher),
		messaging.NewTransferEventPublisher(publisher),
		zerolog.Nop(),
	)
	ctx := context.Background()
	input := validInput()

	_, err := service.InitiateTransfer(ctx, input)
	require.NoError(t, err)

	// The key on the transfer row never expires, so a divergent body
	// stays a conflict even after the record TTL has passed.
	divergent := input
	divergent.AmountMinorUnits = 9999
	_, err = service.InitiateTransfer(ctx, divergent)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	same := input
	_, err = service.InitiateTransfer(ctx, same)
	assert.NoError(t, err)
}

func TestHandleWalletResult_CommandFromAnotherTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	transferA, err := h.service.InitiateTransfer(ctx, validInput())
	require.NoError(t, err)
	transferB, err := h.service.InitiateTransfer(ctx, validInput())
	require.NoError(t, err)

	// A result naming transfer A but carrying transfer B's command id
	// must be rejected without touching either saga.
	foreign, err := h.commands.GetByTransferAndKind(ctx, transferB.ID, domain.CommandDebit)
	require.NoError(t, err)

	payload := protocol.WalletResultPayload{
		CommandID:  foreign.ID,
		TransferID: transferA.ID,
		WalletID:   foreign.WalletID,
		Status:     protocol.ResultSucceeded,
	}
	env := protocol.Envelope{
		MessageID:   uuid.New(),
		OccurredAt:  time.Now().UTC(),
		MessageType: protocol.TypeWalletTransactionResult,
	}
	err = h.service.HandleWalletResult(ctx, env, payload)
	assert.ErrorIs(t, err, domain.ErrCommandNotFound)

	assert.Equal(t, domain.TransferDebitInProgress, h.transferState(t, transferA.ID).Status)
	assert.Equal(t, domain.TransferDebitInProgress, h.transferState(t, transferB.ID).Status)
}

func TestHandleWalletResult_UnknownTransfer(t *testing.T) {
	h := newHarness(t)

	payload := protocol.WalletResultPayload{
		CommandID:  uuid.New(),
		TransferID: uuid.New(),
		Status:     protocol.ResultSucceeded,
	}
	err := h.service.HandleWalletResult(context.Background(), protocol.Envelope{}, payload)
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
	assert.True(t, IsProtocolFault(err))
}

func TestReaper_RedispatchesStuckCommand(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	reaper := NewReaper(h.service, time.Second, 0, 5)
	require.NoError(t, reaper.Sweep(context.Background()))

	// The debit went out twice: once at initiation, once by the reaper.
	assert.Len(t, h.publisher.byType(protocol.TypeWalletDebitCommand), 2)

	command, err := h.commands.GetByTransferAndKind(context.Background(), transfer.ID, domain.CommandDebit)
	require.NoError(t, err)
	assert.Equal(t, 1, command.RetryCount)
	assert.Equal(t, domain.CommandSent, command.Status)
}

func TestReaper_NeverDispatchesParkedCredit(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, domain.TransferDebitInProgress, transfer.Status)

	// A sweep while the debit is still unresolved may re-send the
	// debit, but must not touch the parked credit leg.
	reaper := NewReaper(h.service, time.Second, 0, 5)
	require.NoError(t, reaper.Sweep(context.Background()))

	assert.Empty(t, h.publisher.byType(protocol.TypeWalletCreditCommand))

	credit, err := h.commands.GetByTransferAndKind(context.Background(), transfer.ID, domain.CommandCredit)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandPending, credit.Status)
	assert.Equal(t, 0, credit.RetryCount)
}

func TestReaper_ExhaustedRetriesEscalate(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	reaper := NewReaper(h.service, time.Second, 0, 2)
	for i := 0; i < 3; i++ {
		require.NoError(t, reaper.Sweep(context.Background()))
	}

	// Two re-sends, then the budget is spent. The debit may or may not
	// have been applied, so the saga escalates instead of synthesizing
	// a failure.
	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferUnresolved, final.Status)
	assert.Equal(t, domain.StageDebit, final.FailureStage)
	assert.True(t, final.IsTerminal())
	assert.Len(t, h.publisher.byType(protocol.TypeTransferFailed), 1)

	// Terminal transfers are skipped by later sweeps.
	require.NoError(t, reaper.Sweep(context.Background()))
	assert.Len(t, h.publisher.byType(protocol.TypeTransferFailed), 1)
}

func TestReaper_ExhaustedCreditDoesNotReverse(t *testing.T) {
	h := newHarness(t)
	transfer, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)
	h.deliverResult(t, transfer, domain.CommandDebit, protocol.ResultSucceeded, "")
	require.Equal(t, domain.TransferCreditInProgress, h.transferState(t, transfer.ID).Status)

	reaper := NewReaper(h.service, time.Second, 0, 1)
	for i := 0; i < 2; i++ {
		require.NoError(t, reaper.Sweep(context.Background()))
	}

	// The credit's outcome is unknown; a reversal on top of a possibly
	// kept credit would corrupt balances, so none is dispatched.
	final := h.transferState(t, transfer.ID)
	assert.Equal(t, domain.TransferUnresolved, final.Status)
	assert.Equal(t, domain.StageCredit, final.FailureStage)

	for _, m := range h.publisher.byType(protocol.TypeWalletCreditCommand) {
		payload := h.publisher.commandPayload(t, m)
		assert.Equal(t, transfer.Reference, payload.Reference)
		assert.Equal(t, transfer.DestinationWalletID, payload.WalletID)
	}
}

func TestReaper_LeavesFreshCommandsAlone(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.InitiateTransfer(context.Background(), validInput())
	require.NoError(t, err)

	reaper := NewReaper(h.service, time.Second, time.Hour, 5)
	require.NoError(t, reaper.Sweep(context.Background()))

	assert.Len(t, h.publisher.byType(protocol.TypeWalletDebitCommand), 1)
}
