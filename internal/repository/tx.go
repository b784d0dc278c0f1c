package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrConflict is returned by *Tx create methods when a unique constraint
// rejected the insert. The enclosing transaction is still usable because the
// insert runs inside a savepoint.
var ErrConflict = errors.New("unique constraint conflict")

const pgUniqueViolation = "23505"

// TxRunner opens the transaction scope used by services. Returning an error
// from fn (or panicking) rolls back every statement issued through tx.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct{ db *gorm.DB }

func NewTxRunner(db *gorm.DB) TxRunner { return &gormTxRunner{db: db} }

// RunTx binds ctx to the transaction, so cancelling ctx aborts in-flight
// statements and the transaction rolls back.
func (r *gormTxRunner) RunTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// IsUniqueViolation reports whether err is a Postgres unique violation. When
// constraints are given, the violated constraint name must contain one of them.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if strings.Contains(pgErr.ConstraintName, c) {
			return true
		}
	}
	return false
}

// savepoint runs fn inside a nested transaction so a failed statement does
// not poison the outer transaction.
func savepoint(ctx context.Context, tx *gorm.DB, fn func(sp *gorm.DB) error) error {
	return tx.WithContext(ctx).Transaction(fn)
}
