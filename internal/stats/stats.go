// Package stats tracks daily bot usage counters surfaced by the admin panel.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/calbot/calbot/internal/models"
	"github.com/calbot/calbot/internal/store"
)

// Tracker increments the per-day usage counters. A failed increment is
// logged and swallowed: statistics must never break a user dialog.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st, now: time.Now}
}

// UserRegistered counts a newly registered user.
func (t *Tracker) UserRegistered(ctx context.Context) {
	t.bump(ctx, models.StatUsersRegistered)
}

// EventCreated counts a created event.
func (t *Tracker) EventCreated(ctx context.Context) {
	t.bump(ctx, models.StatEventsCreated)
}

// EventEdited counts an edited event.
func (t *Tracker) EventEdited(ctx context.Context) {
	t.bump(ctx, models.StatEventsEdited)
}

// EventDeleted counts a deleted event.
func (t *Tracker) EventDeleted(ctx context.Context) {
	t.bump(ctx, models.StatEventsDeleted)
}

func (t *Tracker) bump(ctx context.Context, field models.StatField) {
	day := t.now().Format("2006-01-02")
	if err := t.store.IncrementStat(ctx, day, field); err != nil {
		slog.Error("Stats increment failed", "error", err, "field", field, "date", day)
		return
	}
	slog.Debug("Stats increment", "field", field, "date", day)
}
