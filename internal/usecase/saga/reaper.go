package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/Brankond/Momentum/internal/gateway"
)

// Reaper re-dispatches commands whose result never arrived. Without it
// a lost message would park the transfer in a non-terminal state
// forever. Once a command exhausts its retry budget the transfer moves
// to the UNRESOLVED escalation state: under at-least-once delivery a
// missing result does not prove the command was never applied, so
// neither a failure nor a compensation may be synthesized.
type Reaper struct {
	service     *Service
	interval    time.Duration
	resendAfter time.Duration
	maxRetries  int
	batchSize   int
}

func NewReaper(service *Service, interval, resendAfter time.Duration, maxRetries int) *Reaper {
	return &Reaper{
		service:     service,
		interval:    interval,
		resendAfter: resendAfter,
		maxRetries:  maxRetries,
		batchSize:   100,
	}
}

// Run ticks until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.service.log.Error().Err(err).Msg("reaper sweep failed")
			}
		}
	}
}

// Sweep processes one batch of stuck commands.
func (r *Reaper) Sweep(ctx context.Context) error {
	s := r.service
	cutoff := time.Now().UTC().Add(-r.resendAfter)

	var after []func(ctx context.Context)
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		transfers := s.transfers.WithTx(gateway.TxFrom(ctx))
		commands := s.commands.WithTx(gateway.TxFrom(ctx))

		stuck, err := commands.ListStuck(ctx, cutoff, r.batchSize)
		if err != nil {
			return fmt.Errorf("list stuck commands: %w", err)
		}

		for i := range stuck {
			command := stuck[i]
			transfer, err := transfers.GetByIDForUpdate(ctx, command.TransferID)
			if err != nil {
				return err
			}
			// A terminal transfer keeps its stale command rows as
			// history; nothing to re-send.
			if transfer.IsTerminal() {
				continue
			}

			if command.RetryCount >= r.maxRetries {
				fns, err := s.onCommandUnresolved(ctx, transfers, commands, transfer, &command,
					fmt.Sprintf("no result after %d delivery attempts", command.RetryCount+1))
				if err != nil {
					return err
				}
				after = append(after, fns...)
				continue
			}

			command.RecordRetry(time.Now().UTC())
			if err := commands.Save(ctx, &command); err != nil {
				return fmt.Errorf("persist command retry: %w", err)
			}
			snapshot := *transfer
			resend := command
			after = append(after, func(ctx context.Context) {
				commandsReaped.Inc()
				s.dispatchCommand(ctx, &snapshot, &resend)
			})
			s.log.Info().
				Str("transfer_id", transfer.ID.String()).
				Str("command_id", command.ID.String()).
				Int("retry", command.RetryCount).
				Msg("re-dispatching stuck command")
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, fn := range after {
		fn(ctx)
	}
	return nil
}
