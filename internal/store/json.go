package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// document is the on-disk layout: two named, ordered collections.
type document struct {
	Active  []record `json:"active"`
	History []record `json:"history"`
}

// record is the persisted form of an alert.
type record struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Threshold      float64  `json:"threshold"`
	Direction      string   `json:"alert_type"`
	CreatedAt      isoTime  `json:"created_at"`
	Triggered      bool     `json:"triggered"`
	TriggeredAt    *isoTime `json:"triggered_at"`
	TriggeredPrice *float64 `json:"triggered_price"`

	// Older files stored the threshold under this key.
	LegacyThreshold *float64 `json:"price_threshold,omitempty"`
}

// isoTime is written as RFC 3339. On read it also accepts ISO 8601 without
// an offset, as older documents stored local wall-clock times that way.
type isoTime struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t isoTime) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

func (t *isoTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func toRecord(a models.Alert) record {
	a = a.Clone()
	r := record{
		ID:             a.ID,
		Symbol:         a.Symbol,
		Threshold:      a.Threshold,
		Direction:      string(a.Direction),
		CreatedAt:      isoTime{a.CreatedAt},
		Triggered:      a.Status == models.StatusTriggered,
		TriggeredPrice: a.TriggeredPrice,
	}
	if a.TriggeredAt != nil {
		r.TriggeredAt = &isoTime{*a.TriggeredAt}
	}
	return r
}

func (r record) toAlert() models.Alert {
	a := models.Alert{
		ID:             r.ID,
		Symbol:         r.Symbol,
		Threshold:      r.Threshold,
		Direction:      models.Direction(r.Direction),
		CreatedAt:      r.CreatedAt.Time,
		Status:         models.StatusActive,
		TriggeredPrice: r.TriggeredPrice,
	}
	if r.TriggeredAt != nil {
		at := r.TriggeredAt.Time
		a.TriggeredAt = &at
	}
	if a.Threshold == 0 && r.LegacyThreshold != nil {
		a.Threshold = *r.LegacyThreshold
	}
	if r.Triggered {
		a.Status = models.StatusTriggered
	}
	return a
}

// JSONStore implements AlertStore on a single JSON document.
// Writes go to a temporary file that atomically replaces the document.
type JSONStore struct {
	path string

	mu      sync.Mutex
	active  []models.Alert
	history []models.Alert

	now   func() time.Time
	write func(path string, data []byte) error
}

// NewJSONStore opens the JSON document at path, creating its directory if
// needed. A missing file yields an empty store.
func NewJSONStore(path string) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewPersistenceError("mkdir", dir, err)
		}
	}

	s := &JSONStore{
		path:  path,
		now:   time.Now,
		write: writeAtomic,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func writeAtomic(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Path returns the document path.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.NewPersistenceError("read", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperrors.NewPersistenceError("decode", s.path, err)
	}

	s.active = make([]models.Alert, 0, len(doc.Active))
	for _, r := range doc.Active {
		s.active = append(s.active, r.toAlert())
	}
	s.history = make([]models.Alert, 0, len(doc.History))
	for _, r := range doc.History {
		s.history = append(s.history, r.toAlert())
	}
	return nil
}

// commit persists the next state and swaps it in only if the write succeeded.
// Caller must hold s.mu.
func (s *JSONStore) commit(op string, active, history []models.Alert) error {
	doc := document{
		Active:  make([]record, 0, len(active)),
		History: make([]record, 0, len(history)),
	}
	for _, a := range active {
		doc.Active = append(doc.Active, toRecord(a))
	}
	for _, a := range history {
		doc.History = append(doc.History, toRecord(a))
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return apperrors.NewPersistenceError(op, s.path, err)
	}
	if err := s.write(s.path, data); err != nil {
		return apperrors.NewPersistenceError(op, s.path, err)
	}

	s.active = active
	s.history = history
	return nil
}

// Create validates and appends a new active alert.
func (s *JSONStore) Create(ctx context.Context, symbol string, threshold float64, direction models.Direction) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := newAlert(symbol, threshold, direction, s.now())
	if err != nil {
		return models.Alert{}, err
	}

	active := make([]models.Alert, 0, len(s.active)+1)
	active = append(active, s.active...)
	active = append(active, alert)

	if err := s.commit("create", active, s.history); err != nil {
		return models.Alert{}, err
	}
	return alert.Clone(), nil
}

// Get returns the alert with id from either partition.
func (s *JSONStore) Get(ctx context.Context, id string) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.active {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	for _, a := range s.history {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return models.Alert{}, notFound(id, "any")
}

// ListActive returns a snapshot of the active alerts in creation order.
func (s *JSONStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.active), nil
}

// ListHistory returns a snapshot of triggered alerts in trigger order.
func (s *JSONStore) ListHistory(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.history), nil
}

// Delete removes the alert from whichever partition holds it.
func (s *JSONStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, removedActive := without(s.active, id)
	history, removedHistory := without(s.history, id)
	if !removedActive && !removedHistory {
		return false, nil
	}

	if err := s.commit("delete", active, history); err != nil {
		return false, err
	}
	return true, nil
}

// MarkTriggered moves an active alert to the end of history.
func (s *JSONStore) MarkTriggered(ctx context.Context, id string, price float64, at time.Time) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.active {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Alert{}, notFound(id, "active")
	}

	triggered := s.active[idx].Triggered(price, at.UTC().Round(0))

	active := make([]models.Alert, 0, len(s.active)-1)
	active = append(active, s.active[:idx]...)
	active = append(active, s.active[idx+1:]...)

	history := make([]models.Alert, 0, len(s.history)+1)
	history = append(history, s.history...)
	history = append(history, triggered)

	if err := s.commit("mark_triggered", active, history); err != nil {
		return models.Alert{}, err
	}
	return triggered.Clone(), nil
}

// Close is a no-op; every mutation is already durable.
func (s *JSONStore) Close() error {
	return nil
}

func without(alerts []models.Alert, id string) ([]models.Alert, bool) {
	for i, a := range alerts {
		if a.ID == id {
			out := make([]models.Alert, 0, len(alerts)-1)
			out = append(out, alerts[:i]...)
			out = append(out, alerts[i+1:]...)
			return out, true
		}
	}
	return alerts, false
}
