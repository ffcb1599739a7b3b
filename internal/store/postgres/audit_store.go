package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// AuditStore persists audit entries. It backs the in-memory audit log as its
// durable tier; every method failure is tolerated by the log, so the store
// reports errors plainly and never retries.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuditPersistence = (*AuditStore)(nil)

// NewAuditStore creates a store over the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const auditColumns = `id, execution_id, event, venue, wallet, order_id, market_id, ts, detail, error, duration_ns`

// Save inserts one entry. Detail maps are stored as JSONB.
func (s *AuditStore) Save(ctx context.Context, entry domain.AuditEntry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit detail: %w", err)
		}
	}

	const query = `
		INSERT INTO audit_entries (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.ExecutionID, string(entry.Event), string(entry.Venue),
		entry.Wallet, entry.OrderID, entry.MarketID, entry.Timestamp,
		detail, entry.Error, int64(entry.Duration),
	)
	if err != nil {
		return fmt.Errorf("postgres: save audit entry %s: %w", entry.ID, err)
	}
	return nil
}

// Query returns entries matching the filter, newest first.
func (s *AuditStore) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE 1=1`
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if filter.ExecutionID != "" {
		add(" AND execution_id = $%d", filter.ExecutionID)
	}
	if filter.Wallet != "" {
		add(" AND wallet = $%d", filter.Wallet)
	}
	if filter.Venue != "" {
		add(" AND venue = $%d", string(filter.Venue))
	}
	if filter.Event != "" {
		add(" AND event = $%d", string(filter.Event))
	}
	if filter.OrderID != "" {
		add(" AND order_id = $%d", filter.OrderID)
	}
	if filter.Since != nil {
		add(" AND ts >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add(" AND ts <= $%d", *filter.Until)
	}

	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		add(" LIMIT $%d", filter.Limit)
	}
	if filter.Offset > 0 {
		add(" OFFSET $%d", filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesFor returns the full timeline of one execution, oldest first.
func (s *AuditStore) EntriesFor(ctx context.Context, executionID string) ([]domain.AuditEntry, error) {
	const query = `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE execution_id = $1
		ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: audit entries for %s: %w", executionID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e          domain.AuditEntry
			event      string
			venue      string
			detail     []byte
			durationNS int64
			ts         time.Time
		)
		if err := rows.Scan(&e.ID, &e.ExecutionID, &event, &venue, &e.Wallet,
			&e.OrderID, &e.MarketID, &ts, &detail, &e.Error, &durationNS); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		e.Event = domain.EventKind(event)
		e.Venue = domain.Venue(venue)
		e.Timestamp = ts.UTC()
		e.Duration = time.Duration(durationNS)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit rows: %w", err)
	}
	return entries, nil
}
