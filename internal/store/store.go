// Package store provides durable alert persistence.
//
// An AlertStore keeps alerts in two ordered partitions: active alerts in
// creation order and triggered alerts (history) in trigger order. The only
// legal state transition is MarkTriggered, which moves a record from the
// active partition to history exactly once.
package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// AlertStore defines the interface for alert persistence.
//
// Every mutating call persists a complete snapshot before returning. A
// failed write returns a PersistenceError and leaves both the durable and
// the in-memory state as they were before the call.
type AlertStore interface {
	Create(ctx context.Context, symbol string, threshold float64, direction models.Direction) (models.Alert, error)
	Get(ctx context.Context, id string) (models.Alert, error)
	ListActive(ctx context.Context) ([]models.Alert, error)
	ListHistory(ctx context.Context) ([]models.Alert, error)
	Delete(ctx context.Context, id string) (bool, error)

	// MarkTriggered moves an active alert to history. It returns an error
	// matching ErrNotFound when id is not currently active.
	MarkTriggered(ctx context.Context, id string, price float64, at time.Time) (models.Alert, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Options configures Open.
type Options struct {
	Backend string
	Path    string
}

// Open opens the alert store selected by opts.Backend.
func Open(opts Options) (AlertStore, error) {
	path := opts.Path
	switch strings.ToLower(opts.Backend) {
	case "", BackendJSON:
		if path == "" {
			path = "alerts.json"
		}
		return NewJSONStore(path)
	case BackendSQLite:
		if path == "" {
			path = "alerts.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, apperrors.Wrapf(apperrors.ErrConfigInvalid, "unknown store backend %q", opts.Backend)
	}
}

// DefaultPath returns the default store file for a backend inside dir.
func DefaultPath(dir, backend string) string {
	if strings.ToLower(backend) == BackendSQLite {
		return filepath.Join(dir, "alerts.db")
	}
	return filepath.Join(dir, "alerts.json")
}

// newAlert validates the create parameters and builds a fresh active alert.
func newAlert(symbol string, threshold float64, direction models.Direction, now time.Time) (models.Alert, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.Alert{}, apperrors.NewValidationError("symbol", symbol, "must not be empty")
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return models.Alert{}, apperrors.NewValidationError("threshold", threshold, "must be a positive number")
	}
	if !direction.Valid() {
		return models.Alert{}, apperrors.NewValidationError("direction", direction, "must be 'above' or 'below'")
	}

	return models.Alert{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Threshold: threshold,
		Direction: direction,
		CreatedAt: now.UTC().Round(0),
		Status:    models.StatusActive,
	}, nil
}

func notFound(id, partition string) error {
	return fmt.Errorf("alert %s not in %s alerts: %w", id, partition, apperrors.ErrNotFound)
}

func cloneAll(alerts []models.Alert) []models.Alert {
	out := make([]models.Alert, len(alerts))
	for i, a := range alerts {
		out[i] = a.Clone()
	}
	return out
}
