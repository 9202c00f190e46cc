// Package memory provides map-backed repositories used by tests and
// local runs without Postgres. A single mutex in the transaction
// manager serializes units of work, which gives the same exclusive
// locking guarantees the Postgres row locks provide.
package memory

import (
	"context"
	"sync"

	"github.com/Brankond/Momentum/internal/gateway"
)

type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager {
	return &TxManager{}
}

// Run serializes all units of work behind one mutex. Repositories only
// persist state through Create/Save/Append, so a function that returns
// an error before those calls leaves no partial writes behind.
func (m *TxManager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, gateway.TransactionKey, m))
}
