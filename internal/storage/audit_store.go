package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// AuditFilter narrows audit queries. Zero fields match everything.
type AuditFilter struct {
	ThreatLevel model.ThreatLevel
	Zone        string
	Success     *bool
	Since       time.Time
	Until       time.Time
}

func (f AuditFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.ThreatLevel != "" {
		clauses = append(clauses, "threat_level = ?")
		args = append(args, string(f.ThreatLevel))
	}
	if f.Zone != "" {
		clauses = append(clauses, "zone = ?")
		args = append(args, f.Zone)
	}
	if f.Success != nil {
		clauses = append(clauses, "success = ?")
		args = append(args, *f.Success)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, f.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// SQLiteAuditStore stores dispatch audit records in SQLite
type SQLiteAuditStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteAuditStore opens (or creates) the audit database at dbPath
func NewSQLiteAuditStore(logger *zap.Logger, dbPath string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteAuditStore{
		logger: logger.Named("audit_store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteAuditStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_audit (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			threat_level TEXT NOT NULL,
			zone TEXT,
			total_users INTEGER NOT NULL,
			email_sent INTEGER NOT NULL,
			sms_sent INTEGER NOT NULL,
			push_sent INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			reason TEXT,
			threat_data TEXT,
			results TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alert_audit_timestamp ON alert_audit(timestamp);
		CREATE INDEX IF NOT EXISTS idx_alert_audit_threat_level ON alert_audit(threat_level);
		CREATE INDEX IF NOT EXISTS idx_alert_audit_zone ON alert_audit(zone);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Record stores rec. It satisfies the dispatcher's audit log.
func (s *SQLiteAuditStore) Record(ctx context.Context, rec *model.AuditRecord) error {
	var resultsStr string
	if rec.Results != nil {
		data, err := json.Marshal(rec.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal dispatch results: %w", err)
		}
		resultsStr = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_audit (
			id, timestamp, threat_level, zone, total_users, email_sent, sms_sent,
			push_sent, failed, skipped, success, reason, threat_data, results
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC(),
		string(rec.ThreatLevel),
		sql.NullString{String: rec.Zone, Valid: rec.Zone != ""},
		rec.TotalUsers,
		rec.EmailSent,
		rec.SMSSent,
		rec.PushSent,
		rec.Failed,
		rec.Skipped,
		rec.Success,
		sql.NullString{String: rec.Reason, Valid: rec.Reason != ""},
		sql.NullString{String: string(rec.ThreatData), Valid: len(rec.ThreatData) > 0},
		sql.NullString{String: resultsStr, Valid: resultsStr != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to store audit record: %w", err)
	}
	return nil
}

const auditColumns = `id, timestamp, threat_level, zone, total_users, email_sent, sms_sent,
	push_sent, failed, skipped, success, reason, threat_data, results`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAudit(row rowScanner) (*model.AuditRecord, error) {
	var rec model.AuditRecord
	var level string
	var zone, reason, threatData, results sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Timestamp,
		&level,
		&zone,
		&rec.TotalUsers,
		&rec.EmailSent,
		&rec.SMSSent,
		&rec.PushSent,
		&rec.Failed,
		&rec.Skipped,
		&rec.Success,
		&reason,
		&threatData,
		&results,
	)
	if err != nil {
		return nil, err
	}

	rec.ThreatLevel = model.ThreatLevel(level)
	rec.Zone = zone.String
	rec.Reason = reason.String
	if threatData.Valid && threatData.String != "" {
		rec.ThreatData = json.RawMessage(threatData.String)
	}
	if results.Valid && results.String != "" {
		var r model.DispatchResult
		if err := json.Unmarshal([]byte(results.String), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dispatch results: %w", err)
		}
		rec.Results = &r
	}
	return &rec, nil
}

// Get retrieves an audit record by dispatch ID
func (s *SQLiteAuditStore) Get(ctx context.Context, id string) (*model.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+auditColumns+" FROM alert_audit WHERE id = ?", id)
	rec, err := scanAudit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}
	return rec, nil
}

// List retrieves audit records newest first
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter, offset, limit int) ([]*model.AuditRecord, error) {
	where, args := filter.where()
	query := "SELECT " + auditColumns + " FROM alert_audit" + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]*model.AuditRecord, 0)
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count returns the number of records matching filter
func (s *SQLiteAuditStore) Count(ctx context.Context, filter AuditFilter) (int, error) {
	where, args := filter.where()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_audit"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// DeleteBefore deletes records older than before and returns how many were removed
func (s *SQLiteAuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alert_audit WHERE timestamp < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old audit records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Ping checks the database connection
func (s *SQLiteAuditStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}
