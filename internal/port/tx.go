package port

import "context"

// TxManager runs fn inside one local transaction. Repositories called with
// the context passed to fn join that transaction, which is how an aggregate
// mutation and its outbox append commit or roll back together.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
