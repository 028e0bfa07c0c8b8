package repository

import (
	"context"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// storage transaction, passing the underlying transaction handle via tx.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres, NoTX for the
// in-memory store). Repositories accept a nil tx as the non-transactional path.
// fn returning an error rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
