package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/medallion-catalog/internal/catalog"
	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/query"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Name:   "metrics",
		Search: []string{"name"},
		Records: []domain.Record{
			{"name": "Deposit Growth", "level": "branch"},
			{"name": "Cost of Funds", "level": "region"},
			{"name": "Deposit Mix", "level": "region"},
		},
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	store := NewStore()
	first, err := store.Create(testCatalog())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(testCatalog())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := first.With(func(e *query.Engine) error {
		e.SetFilter("level", "region")
		return nil
	}); err != nil {
		t.Fatalf("With: %v", err)
	}

	if got := first.Info().Matches; got != 2 {
		t.Fatalf("expected 2 matches in first session, got %d", got)
	}
	if got := second.Info().Matches; got != 3 {
		t.Fatalf("second session saw first session's filter: %d matches", got)
	}
}

func TestGetExpiresIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store := NewStore(WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	s, err := store.Create(testCatalog())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(30 * time.Second)
	if _, err := store.Get(s.ID); err != nil {
		t.Fatalf("Get within TTL: %v", err)
	}
	now = now.Add(45 * time.Second)
	if _, err := store.Get(s.ID); err != nil {
		t.Fatalf("Get should have refreshed the idle timer: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if removed := store.Sweep(); removed != 1 || store.Len() != 0 {
		t.Fatalf("Sweep removed %d, %d left", removed, store.Len())
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	store := NewStore()
	if err := store.Delete(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Create(nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}

func TestConcurrentSessionAccess(t *testing.T) {
	store := NewStore()
	s, err := store.Create(testCatalog())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.With(func(e *query.Engine) error {
				if i%2 == 0 {
					e.SetSearchTerm("deposit")
				} else {
					e.SetSearchTerm("")
				}
				_ = e.FilteredRecords()
				return nil
			})
			_, _ = store.Get(s.ID)
		}(i)
	}
	wg.Wait()
	if info := s.Info(); info.Total != 3 {
		t.Fatalf("unexpected total %d", info.Total)
	}
}
