// Package store is the persistence layer. Every mutation that the
// trigger rules watch runs its rule evaluation inside the mutation's
// own transaction, so created jobs commit or roll back atomically with
// the write that caused them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/trigger"
	"github.com/leadflowhq/leadflow/shared/postgresql"
)

// Notifier announces committed jobs to interested workers. Announcing
// is advisory; workers also poll, so a lost notice only delays pickup.
type Notifier interface {
	Announce(ctx context.Context, jobs []trigger.CreatedJob)
}

// Store handles all database operations for campaigns, leads, messages
// and jobs.
type Store struct {
	db       *sqlx.DB
	logger   *slog.Logger
	triggers *trigger.Engine
	notifier Notifier
}

// NewStore creates a Store. triggers and notifier may be nil for
// callers that never mutate watched entities.
func NewStore(pg *postgresql.Client, triggers *trigger.Engine, notifier Notifier, logger *slog.Logger) *Store {
	return &Store{
		db:       pg.GetDB(),
		logger:   logger,
		triggers: triggers,
		notifier: notifier,
	}
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// evalTriggers runs the trigger engine over the event inside tx and
// returns the jobs its rules inserted.
func (s *Store) evalTriggers(ctx context.Context, tx *sqlx.Tx, ev *trigger.Event) []trigger.CreatedJob {
	if s.triggers == nil {
		return nil
	}
	return s.triggers.Evaluate(ctx, &txQuerier{tx: tx}, ev)
}

// announce publishes eligibility notices for jobs created in an
// already-committed transaction.
func (s *Store) announce(ctx context.Context, jobs []trigger.CreatedJob) {
	if s.notifier == nil || len(jobs) == 0 {
		return
	}
	s.notifier.Announce(ctx, jobs)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
