package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// backends returns a fresh store per backend rooted in a temp dir.
func backends(t *testing.T) map[string]func() AlertStore {
	t.Helper()
	return map[string]func() AlertStore{
		BackendJSON: func() AlertStore {
			s, err := NewJSONStore(filepath.Join(t.TempDir(), "alerts.json"))
			if err != nil {
				t.Fatalf("Failed to create json store: %v", err)
			}
			return s
		},
		BackendSQLite: func() AlertStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
			if err != nil {
				t.Fatalf("Failed to create sqlite store: %v", err)
			}
			return s
		},
	}
}

func TestCreateThenListActive(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			alert, err := s.Create(ctx, " sym ", 100, models.DirectionAbove)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if alert.Symbol != "SYM" {
				t.Errorf("expected normalized symbol SYM, got %q", alert.Symbol)
			}
			if alert.ID == "" {
				t.Error("expected an id")
			}

			active, err := s.ListActive(ctx)
			if err != nil {
				t.Fatalf("ListActive failed: %v", err)
			}

			count := 0
			for _, a := range active {
				if a.ID == alert.ID {
					count++
					if a.Status != models.StatusActive {
						t.Errorf("expected status active, got %s", a.Status)
					}
					if a.TriggeredAt != nil || a.TriggeredPrice != nil {
						t.Error("active alert must not carry trigger fields")
					}
				}
			}
			if count != 1 {
				t.Errorf("expected alert exactly once in active list, found %d", count)
			}
		})
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		threshold float64
		direction models.Direction
	}{
		{"empty symbol", "", 10, models.DirectionAbove},
		{"blank symbol", "   ", 10, models.DirectionAbove},
		{"zero threshold", "SYM", 0, models.DirectionBelow},
		{"negative threshold", "SYM", -5, models.DirectionBelow},
		{"bad direction", "SYM", 10, models.Direction("sideways")},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			for _, tt := range tests {
				if _, err := s.Create(ctx, tt.symbol, tt.threshold, tt.direction); !errors.Is(err, apperrors.ErrInvalidInput) {
					t.Errorf("%s: expected ErrInvalidInput, got %v", tt.name, err)
				}
			}

			active, _ := s.ListActive(ctx)
			if len(active) != 0 {
				t.Errorf("rejected creates must not change state, got %d active", len(active))
			}
		})
	}
}

func TestMarkTriggeredTwice(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			alert, err := s.Create(ctx, "SYM", 100, models.DirectionAbove)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			triggered, err := s.MarkTriggered(ctx, alert.ID, 101.5, at)
			if err != nil {
				t.Fatalf("first MarkTriggered failed: %v", err)
			}
			if triggered.Status != models.StatusTriggered {
				t.Errorf("expected triggered status, got %s", triggered.Status)
			}

			active, _ := s.ListActive(ctx)
			for _, a := range active {
				if a.ID == alert.ID {
					t.Error("triggered alert still listed as active")
				}
			}

			if _, err := s.MarkTriggered(ctx, alert.ID, 102, at); !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("second MarkTriggered: expected ErrNotFound, got %v", err)
			}

			history, err := s.ListHistory(ctx)
			if err != nil {
				t.Fatalf("ListHistory failed: %v", err)
			}
			var found []models.Alert
			for _, a := range history {
				if a.ID == alert.ID {
					found = append(found, a)
				}
			}
			if len(found) != 1 {
				t.Fatalf("expected exactly one history record, got %d", len(found))
			}
			h := found[0]
			if h.TriggeredAt == nil || !h.TriggeredAt.Equal(at) {
				t.Errorf("expected triggered_at %v, got %v", at, h.TriggeredAt)
			}
			if h.TriggeredPrice == nil || *h.TriggeredPrice != 101.5 {
				t.Errorf("expected triggered_price 101.5, got %v", h.TriggeredPrice)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			a1, _ := s.Create(ctx, "AAA", 10, models.DirectionAbove)
			a2, _ := s.Create(ctx, "BBB", 20, models.DirectionBelow)
			if _, err := s.MarkTriggered(ctx, a2.ID, 19, time.Now()); err != nil {
				t.Fatalf("MarkTriggered failed: %v", err)
			}

			ok, err := s.Delete(ctx, a1.ID)
			if err != nil || !ok {
				t.Fatalf("Delete active: ok=%v err=%v", ok, err)
			}
			ok, err = s.Delete(ctx, a2.ID)
			if err != nil || !ok {
				t.Fatalf("Delete history: ok=%v err=%v", ok, err)
			}

			// Idempotent
			ok, err = s.Delete(ctx, a1.ID)
			if err != nil || ok {
				t.Errorf("second Delete: expected false/nil, got %v/%v", ok, err)
			}

			if _, err := s.MarkTriggered(ctx, a1.ID, 11, time.Now()); !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("MarkTriggered after Delete: expected ErrNotFound, got %v", err)
			}
			if _, err := s.Get(ctx, a2.ID); !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("Get after Delete: expected ErrNotFound, got %v", err)
			}

			active, _ := s.ListActive(ctx)
			history, _ := s.ListHistory(ctx)
			if len(active) != 0 || len(history) != 0 {
				t.Errorf("expected empty store, got %d active %d history", len(active), len(history))
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			var ids []string
			for _, sym := range []string{"A", "B", "C", "D"} {
				a, err := s.Create(ctx, sym, 1, models.DirectionAbove)
				if err != nil {
					t.Fatalf("Create failed: %v", err)
				}
				ids = append(ids, a.ID)
			}

			// Trigger out of creation order: C then A.
			s.MarkTriggered(ctx, ids[2], 2, time.Now())
			s.MarkTriggered(ctx, ids[0], 2, time.Now())

			active, _ := s.ListActive(ctx)
			if len(active) != 2 || active[0].ID != ids[1] || active[1].ID != ids[3] {
				t.Errorf("active not in creation order: %+v", active)
			}
			history, _ := s.ListHistory(ctx)
			if len(history) != 2 || history[0].ID != ids[2] || history[1].ID != ids[0] {
				t.Errorf("history not in trigger order: %+v", history)
			}
		})
	}
}

func TestConcurrentMarkTriggeredSucceedsOnce(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			alert, _ := s.Create(ctx, "SYM", 100, models.DirectionAbove)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.MarkTriggered(ctx, alert.ID, 101, time.Now()); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					} else if !errors.Is(err, apperrors.ErrNotFound) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if successes != 1 {
				t.Errorf("expected exactly one successful trigger, got %d", successes)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "mongo"}); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Backend: BackendSQLite, Path: DefaultPath(dir, BackendSQLite)})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", s)
	}
	s.Close()

	s, err = Open(Options{Backend: BackendJSON, Path: DefaultPath(dir, BackendJSON)})
	if err != nil {
		t.Fatalf("Open json failed: %v", err)
	}
	if _, ok := s.(*JSONStore); !ok {
		t.Errorf("expected *JSONStore, got %T", s)
	}
	s.Close()
}
