// Package scheduling decides whether a user can be invited to a meeting at a
// given slot and creates pending invitations.
//
// The domain models point-in-time meetings, not intervals: a user is busy at
// (date, time) only when an appointment matches that pair exactly and is
// still pending or confirmed.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calbot/calbot/internal/models"
	"github.com/calbot/calbot/internal/store"
)

// Checker answers busy/free questions and creates pending invitations.
type Checker struct {
	store store.Store
}

// NewChecker creates a Checker backed by the given store.
func NewChecker(st store.Store) *Checker {
	return &Checker{store: st}
}

// IsFree reports whether the user has no pending or confirmed appointment at
// exactly (date, timeOfDay), as organizer or participant.
func (c *Checker) IsFree(ctx context.Context, userID int64, date, timeOfDay string) (bool, error) {
	busy, err := c.store.HasBusyAppointment(ctx, userID, date, timeOfDay)
	if err != nil {
		return false, fmt.Errorf("availability check failed: %w", err)
	}
	slog.Debug("Checker IsFree", "userID", userID, "date", date, "time", timeOfDay, "free", !busy)
	return !busy, nil
}

// CreatePendingInvite creates a pending appointment for the event's slot.
// The participant's availability is re-checked atomically with the insert by
// the store, closing the race between the flow's own check and the write.
// A busy participant yields models.ErrParticipantBusy and no side effect.
// Empty details fall back to the source event's own details.
func (c *Checker) CreatePendingInvite(ctx context.Context, organizerID, participantID int64, event models.Event, details string) (*models.Appointment, error) {
	if details == "" {
		details = event.Details
	}
	appt, err := c.store.CreatePendingAppointment(ctx, models.Appointment{
		EventID:       event.ID,
		OrganizerID:   organizerID,
		ParticipantID: participantID,
		Date:          event.Date,
		Time:          event.Time,
		Details:       details,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Pending invite created", "appointmentID", appt.ID,
		"organizerID", organizerID, "participantID", participantID,
		"date", event.Date, "time", event.Time)
	return appt, nil
}
