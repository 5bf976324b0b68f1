// Package scheduler triggers digest runs for users whose local clock is
// inside the morning delivery window.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"newsdigest/internal/database"
	"newsdigest/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	// TickSpec fires every half hour; the due window is exactly as wide,
	// so each user is caught at most once per calendar day. Ticks missed
	// across the window skip that day's digest, by design.
	TickSpec = "0,30 * * * *"

	dueHour          = 8
	dueWindowMinutes = 30
	tickTimeout      = 15 * time.Minute

	maxConcurrentRuns = 4
)

// DigestRunner is what a tick invokes per due user.
type DigestRunner interface {
	RunForUser(ctx context.Context, user domain.User) (*domain.Digest, error)
}

type Trigger struct {
	ctx    context.Context
	cron   *cron.Cron
	db     *database.Database
	runner DigestRunner
	log    *slog.Logger
}

func New(
	ctx context.Context,
	db *database.Database,
	runner DigestRunner,
	log *slog.Logger,
) *Trigger {
	c := cron.New(cron.WithLocation(time.UTC))

	return &Trigger{
		ctx:    ctx,
		cron:   c,
		db:     db,
		runner: runner,
		log:    log,
	}
}

func (t *Trigger) Start() error {
	if _, err := t.cron.AddFunc(TickSpec, t.tick); err != nil {
		return err
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) Stop() {
	t.cron.Stop()
}

func (t *Trigger) tick() {
	ctx, cancel := context.WithTimeout(t.ctx, tickTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		t.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	t.Tick(ctx, time.Now().UTC())
}

// Tick resolves each user's local time and runs the digest pipeline for
// those inside the 08:00-08:30 window. One user's failure never blocks the
// rest. It returns the users that were processed.
func (t *Trigger) Tick(ctx context.Context, now time.Time) []domain.User {
	users, err := t.db.ListUsers(ctx)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to list users",
			"error", err)

		return nil
	}

	var due []domain.User
	for _, user := range users {
		if t.isDue(ctx, user, now) {
			due = append(due, user)
		}
	}
	if len(due) == 0 {
		return nil
	}

	var wg sync.WaitGroup

	concurrency := min(maxConcurrentRuns, len(due))
	semCh := make(chan struct{}, concurrency)

	for _, user := range due {
		wg.Add(1)
		semCh <- struct{}{}

		go func(copiedUser domain.User) {
			defer wg.Done()

			if _, runErr := t.runner.RunForUser(ctx, copiedUser); runErr != nil {
				t.log.ErrorContext(ctx, "Failed to run digest for user",
					"error", runErr,
					"userID", copiedUser.ID)
			}

			<-semCh
		}(user)
	}

	wg.Wait()

	return due
}

func (t *Trigger) isDue(ctx context.Context, user domain.User, now time.Time) bool {
	timezone := "UTC"

	pref, err := t.db.GetUserPreferenceWithDefault(ctx, user.ID)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to fetch user preference so UTC will be used",
			"error", err,
			"userID", user.ID)
	} else {
		timezone = pref.Timezone
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		t.log.WarnContext(ctx, "Invalid timezone so UTC will be used",
			"error", err,
			"userID", user.ID,
			"timezone", timezone)

		loc = time.UTC
	}

	local := now.In(loc)

	return local.Hour() == dueHour && local.Minute() < dueWindowMinutes
}
