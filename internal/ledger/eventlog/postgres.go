package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all node instances sharing a database.
const advisoryLockKey = int64(2_743_159_880)

// PostgresLog persists the hash-chained event log to a PostgreSQL database.
// It implements the Log interface.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLog creates a PostgresLog backed by the given connection pool.
func NewPostgresLog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

// Append implements Log. It acquires a PostgreSQL advisory lock, reads the
// chain tail, hashes and inserts the whole batch — all within a single
// transaction, so the events of one state transition stay consecutive.
func (l *PostgresLog) Append(ctx context.Context, events ...model.Event) ([]model.Record, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory lock.
	// The lock is released automatically when the transaction ends.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var (
		tipPos  uint64
		tipHash string
	)
	err = tx.QueryRow(ctx,
		"SELECT position, hash FROM event_log ORDER BY position DESC LIMIT 1",
	).Scan(&tipPos, &tipHash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		tipPos, tipHash = 0, GenesisHash
	case err != nil:
		return nil, fmt.Errorf("read log tail: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := make([]model.Record, 0, len(events))
	prevHash := tipHash
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.EventKind(), err)
		}
		rec := model.Record{
			Position:  tipPos + uint64(i) + 1,
			Kind:      ev.EventKind(),
			Timestamp: now,
			Payload:   payload,
			PrevHash:  prevHash,
		}
		rec.Hash = hashRecord(&rec)

		if _, err := tx.Exec(ctx,
			`INSERT INTO event_log (position, kind, ts, payload, prev_hash, hash)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Position, string(rec.Kind), rec.Timestamp,
			rec.Payload, rec.PrevHash, rec.Hash,
		); err != nil {
			return nil, fmt.Errorf("insert record %d: %w", rec.Position, err)
		}

		batch = append(batch, rec)
		prevHash = rec.Hash
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit log tx: %w", err)
	}

	l.logger.Debug("records appended",
		zap.Uint64("first_position", batch[0].Position),
		zap.Int("count", len(batch)),
		zap.String("kind", string(batch[0].Kind)),
	)
	return batch, nil
}

// ReadRange implements Log. Clipping to the tip falls out of the WHERE
// clause: rows beyond the tip do not exist.
func (l *PostgresLog) ReadRange(ctx context.Context, from, to uint64) ([]model.Record, error) {
	if from == 0 {
		from = 1
	}
	if from > to {
		return nil, nil
	}

	rows, err := l.pool.Query(ctx,
		`SELECT position, kind, ts, payload, prev_hash, hash
		 FROM event_log WHERE position >= $1 AND position <= $2
		 ORDER BY position ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query range [%d,%d]: %w", from, to, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CurrentTip implements Log.
func (l *PostgresLog) CurrentTip(ctx context.Context) (uint64, error) {
	var tip uint64
	if err := l.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(position), 0) FROM event_log",
	).Scan(&tip); err != nil {
		return 0, fmt.Errorf("read current tip: %w", err)
	}
	return tip, nil
}

// Verify implements Log. It streams all rows ordered by position and checks
// density and the hash chain. O(n) in log length.
func (l *PostgresLog) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT position, kind, ts, payload, prev_hash, hash
		 FROM event_log ORDER BY position ASC`,
	)
	if err != nil {
		return fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	prevPos := uint64(0)
	prevHash := GenesisHash
	for rows.Next() {
		curr, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if curr.Position != prevPos+1 {
			return fmt.Errorf("position gap: record %d follows %d", curr.Position, prevPos)
		}
		if curr.PrevHash != prevHash {
			return fmt.Errorf("hash chain broken at position %d", curr.Position)
		}
		if curr.Hash != hashRecord(&curr) {
			return fmt.Errorf("record %d has invalid hash", curr.Position)
		}
		prevPos, prevHash = curr.Position, curr.Hash
	}
	return rows.Err()
}

// Root implements Log.
func (l *PostgresLog) Root(ctx context.Context) (string, error) {
	var hash string
	err := l.pool.QueryRow(ctx,
		"SELECT hash FROM event_log ORDER BY position DESC LIMIT 1",
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("read log root: %w", err)
	}
	return hash, nil
}

// scanRecord reads one event_log row. Timestamps are normalised to UTC so
// hashes recompute identically regardless of the session time zone.
func scanRecord(rows pgx.Rows) (model.Record, error) {
	var rec model.Record
	if err := rows.Scan(
		&rec.Position, &rec.Kind, &rec.Timestamp,
		&rec.Payload, &rec.PrevHash, &rec.Hash,
	); err != nil {
		return model.Record{}, fmt.Errorf("scan log row: %w", err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
