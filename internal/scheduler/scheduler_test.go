package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"newsdigest/internal/database"
	"newsdigest/internal/domain"
)

type stubRunner struct {
	mu      sync.Mutex
	userIDs []int64
	failFor map[int64]bool
}

func (r *stubRunner) RunForUser(_ context.Context, user domain.User) (*domain.Digest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userIDs = append(r.userIDs, user.ID)

	if r.failFor[user.ID] {
		return nil, errors.New("run failed")
	}

	return nil, nil
}

func (r *stubRunner) ranFor(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.userIDs {
		if id == userID {
			return true
		}
	}

	return false
}

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func newTestUser(t *testing.T, db *database.Database, email, timezone string) domain.User {
	t.Helper()
	ctx := context.Background()

	user, err := db.CreateUser(ctx, email)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if timezone != "" {
		if err = db.UpsertUserPreference(ctx, &domain.UserPreference{
			UserID:   user.ID,
			Timezone: timezone,
		}); err != nil {
			t.Fatalf("failed to set preference: %v", err)
		}
	}

	return *user
}

func TestTickMarksTokyoUserDueInWindow(t *testing.T) {
	db := newTestDatabase(t)
	user := newTestUser(t, db, "tokyo@example.com", "Asia/Tokyo")

	runner := &stubRunner{}
	trigger := New(context.Background(), db, runner, slog.Default())

	// 23:15 UTC is 08:15 the next day in Tokyo.
	now := time.Date(2025, 6, 1, 23, 15, 0, 0, time.UTC)

	processed := trigger.Tick(context.Background(), now)

	if len(processed) != 1 || processed[0].ID != user.ID {
		t.Fatalf("expected the Tokyo user to be processed, got %v", processed)
	}
	if !runner.ranFor(user.ID) {
		t.Fatalf("expected the runner to be invoked")
	}
}

func TestTickSkipsTokyoUserOutsideWindow(t *testing.T) {
	db := newTestDatabase(t)
	newTestUser(t, db, "tokyo@example.com", "Asia/Tokyo")

	runner := &stubRunner{}
	trigger := New(context.Background(), db, runner, slog.Default())

	// 23:35 UTC is 08:35 in Tokyo, past the half-open window.
	now := time.Date(2025, 6, 1, 23, 35, 0, 0, time.UTC)

	if processed := trigger.Tick(context.Background(), now); len(processed) != 0 {
		t.Fatalf("expected no users processed, got %v", processed)
	}
	if len(runner.userIDs) != 0 {
		t.Fatalf("expected the runner not to be invoked")
	}
}

func TestTickDefaultsToUTCWithoutPreference(t *testing.T) {
	db := newTestDatabase(t)
	user := newTestUser(t, db, "utc@example.com", "")

	runner := &stubRunner{}
	trigger := New(context.Background(), db, runner, slog.Default())

	now := time.Date(2025, 6, 1, 8, 10, 0, 0, time.UTC)

	processed := trigger.Tick(context.Background(), now)

	if len(processed) != 1 || processed[0].ID != user.ID {
		t.Fatalf("expected the user to fall back to UTC and be processed, got %v", processed)
	}
}

func TestTickFallsBackToUTCForInvalidTimezone(t *testing.T) {
	db := newTestDatabase(t)
	user := newTestUser(t, db, "lost@example.com", "Mars/Crater")

	runner := &stubRunner{}
	trigger := New(context.Background(), db, runner, slog.Default())

	now := time.Date(2025, 6, 1, 8, 10, 0, 0, time.UTC)

	processed := trigger.Tick(context.Background(), now)

	if len(processed) != 1 || processed[0].ID != user.ID {
		t.Fatalf("expected invalid timezone to fall back to UTC, got %v", processed)
	}
}

func TestTickContinuesPastFailingUser(t *testing.T) {
	db := newTestDatabase(t)
	first := newTestUser(t, db, "first@example.com", "")
	second := newTestUser(t, db, "second@example.com", "")

	runner := &stubRunner{failFor: map[int64]bool{first.ID: true}}
	trigger := New(context.Background(), db, runner, slog.Default())

	now := time.Date(2025, 6, 1, 8, 10, 0, 0, time.UTC)

	processed := trigger.Tick(context.Background(), now)

	if len(processed) != 2 {
		t.Fatalf("expected both users processed, got %d", len(processed))
	}
	if !runner.ranFor(first.ID) || !runner.ranFor(second.ID) {
		t.Fatalf("expected the runner to be invoked for both users, got %v", runner.userIDs)
	}
}

func TestTickWindowBoundaries(t *testing.T) {
	db := newTestDatabase(t)
	newTestUser(t, db, "utc@example.com", "")

	runner := &stubRunner{}
	trigger := New(context.Background(), db, runner, slog.Default())

	for _, tc := range []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"start of window", time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), true},
		{"last due minute", time.Date(2025, 6, 1, 8, 29, 59, 0, time.UTC), true},
		{"window end", time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), false},
		{"hour before", time.Date(2025, 6, 1, 7, 59, 0, 0, time.UTC), false},
	} {
		processed := trigger.Tick(context.Background(), tc.now)

		if got := len(processed) == 1; got != tc.due {
			t.Fatalf("%s: expected due=%v, got processed %v", tc.name, tc.due, processed)
		}
	}
}
