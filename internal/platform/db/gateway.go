package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/alanwang5210/telegram-bot/pkg/apperr"
)

// txKey is the context key for storing transaction.
type txKey struct{}

// Gateway scopes store access to transactions carried in the context.
// Services never hold a *gorm.DB of their own; they ask Conn for the
// handle bound to ctx so nested operations join the caller's transaction.
type Gateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// RunInTransaction executes fn within a database transaction. If ctx
// already carries one, fn joins it and the outermost call decides
// commit or rollback. Any error returned by fn rolls back.
func (g *Gateway) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return Translate("transaction", err)
}

// Conn returns the transaction from ctx if present, otherwise the pool.
func (g *Gateway) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return g.db.WithContext(ctx)
}

// Pool ignores any transaction in ctx. Writes through it survive a
// rollback of the caller's transaction.
func (g *Gateway) Pool(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx)
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// Translate maps a store error to the apperr taxonomy. Errors that are
// already part of the taxonomy pass through unchanged.
func Translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrInvalidCode),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrInvalidArgument),
		apperr.IsPersistence(err),
		apperr.IsTransport(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &apperr.PersistenceError{Op: op, Err: err}
	}
}
