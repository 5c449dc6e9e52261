package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"elasticOps/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for the operation journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the journal schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutOperations inserts or updates operation records by id.
func (s *Store) PutOperations(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		approvals := r.Approvals
		if approvals == nil {
			approvals = []string{}
		}
		batch.Queue(`
			INSERT INTO operations (
				id, operation, chain_id, pool, owner, position_id, tick_lower, tick_upper,
				liquidity, amount0, amount1, amount0_min, amount1_min, approvals, tx_hash,
				status, error_kind, error, started_at, finished_at, created_at, updated_at
			) VALUES (
				$1::text::uuid, $2, $3, $4, $5, NULLIF($6, '')::numeric, $7, $8,
				NULLIF($9, '')::numeric, NULLIF($10, '')::numeric, NULLIF($11, '')::numeric,
				NULLIF($12, '')::numeric, NULLIF($13, '')::numeric, $14, $15,
				$16, $17, $18, $19, $20, now(), now()
			)
			ON CONFLICT (id)
			DO UPDATE SET
				tx_hash = EXCLUDED.tx_hash,
				approvals = EXCLUDED.approvals,
				status = EXCLUDED.status,
				error_kind = EXCLUDED.error_kind,
				error = EXCLUDED.error,
				finished_at = EXCLUDED.finished_at,
				updated_at = now()
		`,
			r.ID,
			r.Operation,
			int64(r.ChainID),
			r.Pool,
			r.Owner,
			r.PositionID,
			r.TickLower,
			r.TickUpper,
			r.Liquidity,
			r.Amount0,
			r.Amount1,
			r.Amount0Min,
			r.Amount1Min,
			approvals,
			r.TxHash,
			r.Status,
			r.ErrorKind,
			r.Error,
			r.StartedAt,
			r.FinishedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentOperations returns up to limit records, newest first. An empty
// owner matches every owner.
func (s *Store) RecentOperations(ctx context.Context, owner string, limit int) ([]model.OperationRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, operation, chain_id, pool, owner,
			COALESCE(position_id::text, ''), tick_lower, tick_upper,
			COALESCE(liquidity::text, ''), COALESCE(amount0::text, ''), COALESCE(amount1::text, ''),
			COALESCE(amount0_min::text, ''), COALESCE(amount1_min::text, ''),
			approvals, tx_hash, status, error_kind, error, started_at, finished_at
		FROM operations
		WHERE $1 = '' OR owner = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OperationRecord
	for rows.Next() {
		var r model.OperationRecord
		var chainID int64
		if err := rows.Scan(
			&r.ID, &r.Operation, &chainID, &r.Pool, &r.Owner,
			&r.PositionID, &r.TickLower, &r.TickUpper,
			&r.Liquidity, &r.Amount0, &r.Amount1, &r.Amount0Min, &r.Amount1Min,
			&r.Approvals, &r.TxHash, &r.Status, &r.ErrorKind, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.ChainID = uint64(chainID)
		if len(r.Approvals) == 0 {
			r.Approvals = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
