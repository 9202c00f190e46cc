package gateway

import "context"

// TransactionObject is the opaque handle that carries the storage
// transaction between the unit of work and the repositories.
type TransactionObject interface{}

// TransactionManager runs a function inside one atomic unit of work.
// If fn returns an error everything written inside it is rolled back.
type TransactionManager interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionKeyType avoids context key collisions.
type TransactionKeyType string

const TransactionKey TransactionKeyType = "transaction"

// TxFrom extracts the transaction handle injected by a
// TransactionManager, or nil when running outside a unit of work.
func TxFrom(ctx context.Context) TransactionObject {
	return ctx.Value(TransactionKey)
}
