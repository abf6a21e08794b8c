package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveRegistration(ctx context.Context, reg *model.PushEndpointRegistration) error {
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now
	reg.Active = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_endpoints (endpoint_id, device_token, user_id, active, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		reg.EndpointID, reg.DeviceToken, reg.UserID, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *SQLite) RegistrationByToken(ctx context.Context, deviceToken string) (*model.PushEndpointRegistration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT endpoint_id, device_token, user_id, active, created_at, updated_at
		 FROM push_endpoints WHERE device_token = ? AND active = 1`,
		deviceToken,
	)
	return scanRegistration(row)
}

func (s *SQLite) RegistrationByEndpoint(ctx context.Context, endpointID string) (*model.PushEndpointRegistration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT endpoint_id, device_token, user_id, active, created_at, updated_at
		 FROM push_endpoints WHERE endpoint_id = ?`,
		endpointID,
	)
	return scanRegistration(row)
}

func (s *SQLite) UpdateRegistrationToken(ctx context.Context, endpointID, newToken string) error {
	return s.updateEndpoint(ctx,
		`UPDATE push_endpoints SET device_token = ?, updated_at = ? WHERE endpoint_id = ? AND active = 1`,
		newToken, time.Now().UTC(), endpointID)
}

func (s *SQLite) TouchRegistration(ctx context.Context, endpointID, userID string) error {
	return s.updateEndpoint(ctx,
		`UPDATE push_endpoints SET user_id = ?, updated_at = ? WHERE endpoint_id = ? AND active = 1`,
		userID, time.Now().UTC(), endpointID)
}

func (s *SQLite) DeactivateRegistration(ctx context.Context, endpointID string) error {
	return s.updateEndpoint(ctx,
		`UPDATE push_endpoints SET active = 0, updated_at = ? WHERE endpoint_id = ?`,
		time.Now().UTC(), endpointID)
}

func (s *SQLite) updateEndpoint(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListActiveRegistrations(ctx context.Context, limit int, pageToken string) ([]model.PushEndpointRegistration, string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint_id, device_token, user_id, active, created_at, updated_at
		 FROM push_endpoints
		 WHERE active = 1 AND endpoint_id > ?
		 ORDER BY endpoint_id LIMIT ?`,
		pageToken, limit+1,
	)
	if err != nil {
		return nil, "", fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.PushEndpointRegistration
	for rows.Next() {
		var r model.PushEndpointRegistration
		if err := rows.Scan(&r.EndpointID, &r.DeviceToken, &r.UserID, &r.Active,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, "", fmt.Errorf("scan registration row: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(regs) > limit {
		regs = regs[:limit]
		next = regs[limit-1].EndpointID
	}
	return regs, next, nil
}

func (s *SQLite) LedgerSnapshot(ctx context.Context, period string) (*model.LedgerSnapshot, error) {
	var snap model.LedgerSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT period, spent_usd, updated_at FROM spend_ledger WHERE period = ?`,
		period,
	).Scan(&snap.Period, &snap.SpentUSD, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLite) SaveLedgerSnapshot(ctx context.Context, snap *model.LedgerSnapshot) error {
	snap.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spend_ledger (period, spent_usd, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(period) DO UPDATE SET spent_usd = excluded.spent_usd, updated_at = excluded.updated_at`,
		snap.Period, snap.SpentUSD, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save ledger snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanRegistration(row *sql.Row) (*model.PushEndpointRegistration, error) {
	var r model.PushEndpointRegistration
	err := row.Scan(&r.EndpointID, &r.DeviceToken, &r.UserID, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return &r, nil
}
