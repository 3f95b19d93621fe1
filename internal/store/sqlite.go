package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// SQLiteStore implements AlertStore using SQLite.
// Each mutation runs in its own transaction, so a crash leaves either the
// pre- or the post-operation state.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSQLiteStore creates a new SQLite-based alert store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewPersistenceError("mkdir", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewPersistenceError("open", dbPath, err)
	}

	// All access is serialized by mu; one connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceError("schema", dbPath, err)
	}

	return s, nil
}

// initSchema creates the alerts table and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- seq preserves creation order, trigger_seq preserves trigger order
	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		threshold REAL NOT NULL,
		direction TEXT NOT NULL,
		created_at TEXT NOT NULL,
		triggered INTEGER NOT NULL DEFAULT 0,
		triggered_at TEXT,
		triggered_price REAL,
		trigger_seq INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(triggered, seq);
	CREATE INDEX IF NOT EXISTS idx_alerts_history ON alerts(triggered, trigger_seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

const alertColumns = `id, symbol, threshold, direction, created_at, triggered, triggered_at, triggered_price`

// Create validates and inserts a new active alert.
func (s *SQLiteStore) Create(ctx context.Context, symbol string, threshold float64, direction models.Direction) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := newAlert(symbol, threshold, direction, s.now())
	if err != nil {
		return models.Alert{}, err
	}

	query := `INSERT INTO alerts (id, symbol, threshold, direction, created_at, triggered) VALUES (?, ?, ?, ?, ?, 0)`
	_, err = s.db.ExecContext(ctx, query,
		alert.ID, alert.Symbol, alert.Threshold, string(alert.Direction), formatTime(alert.CreatedAt))
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("create", s.path, err)
	}

	return alert, nil
}

// Get returns the alert with id from either partition.
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return models.Alert{}, notFound(id, "any")
	}
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("get", s.path, err)
	}
	return alert, nil
}

// ListActive returns active alerts in creation order.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, `SELECT `+alertColumns+` FROM alerts WHERE triggered = 0 ORDER BY seq`)
}

// ListHistory returns triggered alerts in trigger order.
func (s *SQLiteStore) ListHistory(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, `SELECT `+alertColumns+` FROM alerts WHERE triggered = 1 ORDER BY trigger_seq`)
}

func (s *SQLiteStore) list(ctx context.Context, query string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list", s.path, err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError("list", s.path, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("list", s.path, err)
	}
	return alerts, nil
}

// Delete removes the alert from whichever partition holds it.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return false, apperrors.NewPersistenceError("delete", s.path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewPersistenceError("delete", s.path, err)
	}
	return n > 0, nil
}

// MarkTriggered moves an active alert to the end of history.
func (s *SQLiteStore) MarkTriggered(ctx context.Context, id string, price float64, at time.Time) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.UTC().Round(0)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("mark_triggered", s.path, err)
	}
	defer tx.Rollback()

	query := `
		UPDATE alerts
		SET triggered = 1,
		    triggered_at = ?,
		    triggered_price = ?,
		    trigger_seq = (SELECT COALESCE(MAX(trigger_seq), 0) + 1 FROM alerts)
		WHERE id = ? AND triggered = 0
	`
	result, err := tx.ExecContext(ctx, query, formatTime(at), price, id)
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("mark_triggered", s.path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("mark_triggered", s.path, err)
	}
	if n == 0 {
		return models.Alert{}, notFound(id, "active")
	}

	alert, err := scanAlert(tx.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("mark_triggered", s.path, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Alert{}, apperrors.NewPersistenceError("mark_triggered", s.path, err)
	}
	return alert, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (models.Alert, error) {
	var (
		a              models.Alert
		direction      string
		createdAt      string
		triggered      int
		triggeredAt    sql.NullString
		triggeredPrice sql.NullFloat64
	)

	if err := row.Scan(&a.ID, &a.Symbol, &a.Threshold, &direction, &createdAt, &triggered, &triggeredAt, &triggeredPrice); err != nil {
		return models.Alert{}, err
	}

	a.Direction = models.Direction(direction)
	a.Status = models.StatusActive

	t, err := parseTime(createdAt)
	if err != nil {
		return models.Alert{}, fmt.Errorf("parsing created_at: %w", err)
	}
	a.CreatedAt = t

	if triggered != 0 {
		a.Status = models.StatusTriggered
		if triggeredAt.Valid {
			ta, err := parseTime(triggeredAt.String)
			if err != nil {
				return models.Alert{}, fmt.Errorf("parsing triggered_at: %w", err)
			}
			a.TriggeredAt = &ta
		}
		if triggeredPrice.Valid {
			p := triggeredPrice.Float64
			a.TriggeredPrice = &p
		}
	}

	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
