package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const profileColumns = "id, full_name, email, phone, device_token, location"

// PostgresDirectory reads recipients from the profiles table
type PostgresDirectory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewPostgresDirectory connects to the database at dsn
func NewPostgresDirectory(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresDirectory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDirectory{logger: logger.Named("postgres_directory"), db: db}, nil
}

// Migrate creates the profiles table if it does not exist
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			full_name TEXT,
			email TEXT,
			phone TEXT,
			device_token TEXT,
			location TEXT,
			role TEXT DEFAULT 'community',
			created_at TIMESTAMPTZ DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_location ON profiles (lower(location));
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate profiles: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a recipient profile
func (d *PostgresDirectory) Upsert(ctx context.Context, r model.Recipient) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, email, phone, device_token, location)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			device_token = EXCLUDED.device_token,
			location = EXCLUDED.location`,
		r.ID, nullString(r.Name), nullString(r.Email), nullString(r.Phone), nullString(r.DeviceToken), nullString(r.Zone))
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// ListAll returns every profile
func (d *PostgresDirectory) ListAll(ctx context.Context) ([]model.Recipient, error) {
	return d.query(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY id")
}

// ListByZone returns profiles whose location matches zone, ignoring case
func (d *PostgresDirectory) ListByZone(ctx context.Context, zone string) ([]model.Recipient, error) {
	return d.query(ctx, "SELECT "+profileColumns+" FROM profiles WHERE lower(location) = lower($1) ORDER BY id", zone)
}

func (d *PostgresDirectory) query(ctx context.Context, query string, args ...interface{}) ([]model.Recipient, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var recipients []model.Recipient
	for rows.Next() {
		var r model.Recipient
		var name, email, phone, token, location sql.NullString
		if err := rows.Scan(&r.ID, &name, &email, &phone, &token, &location); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		r.Name = name.String
		r.Email = email.String
		r.Phone = phone.String
		r.DeviceToken = token.String
		r.Zone = location.String
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	d.logger.Debug("Loaded recipients", zap.Int("count", len(recipients)))
	return recipients, nil
}

// Ping checks the database connection
func (d *PostgresDirectory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection
func (d *PostgresDirectory) Close() error {
	return d.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
