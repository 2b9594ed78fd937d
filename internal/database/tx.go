// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/metrics"
)

// WithTransaction is the transaction coordinator. It acquires one pooled
// connection, begins a transaction on it, invokes fn, commits on normal
// return and rolls back on any error. The connection is released exactly
// once in every path.
//
// Error contract:
//   - fn's error is returned unchanged (no wrapping) so callers can
//     inspect store errors directly.
//   - If rollback itself fails, the rollback error is returned instead
//     and the original error is logged.
//   - No retries happen at this layer; retry policy belongs to callers.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Queryer) error) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to release connection")
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		metrics.DBTransactionsTotal.WithLabelValues("rolled_back").Inc()
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error().
				Err(rbErr).
				AnErr("original_error", err).
				Msg("Transaction rollback failed")
			return rbErr
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.DBTransactionsTotal.WithLabelValues("rolled_back").Inc()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.DBTransactionsTotal.WithLabelValues("committed").Inc()
	return nil
}
