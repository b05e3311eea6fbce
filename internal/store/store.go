// Package store provides storage backends for the calendar bot.
//
// It includes SQLite and PostgreSQL implementations over database/sql and an
// in-memory store used by tests. All event operations are scoped by the
// owning user id; no cross-owner access is possible through this surface.
package store

import (
	"context"

	"github.com/calbot/calbot/internal/models"
)

// Store defines the persistence surface consumed by the dialog flows, the
// conflict checker, and the admin API.
type Store interface {
	// UpsertUser registers a user or refreshes an existing registration.
	// It reports whether a new row was created.
	UpsertUser(ctx context.Context, user models.User) (created bool, err error)

	// UserExists reports whether the user id is registered.
	UserExists(ctx context.Context, userID int64) (bool, error)

	// CreateEvent inserts a new event and returns its id. Date and time are
	// re-validated before insertion; malformed values yield models.ErrInvalidDateTime.
	CreateEvent(ctx context.Context, ev models.Event) (int64, error)

	// GetEvent returns the owner's event, or nil if it does not exist or
	// belongs to another user.
	GetEvent(ctx context.Context, ownerID, eventID int64) (*models.Event, error)

	// ListEvents returns all events of the owner ordered by date, time, id.
	ListEvents(ctx context.Context, ownerID int64) ([]models.Event, error)

	// ListPublicEvents returns the owner's public events ordered by date, time, id.
	ListPublicEvents(ctx context.Context, ownerID int64) ([]models.Event, error)

	// UpdateEventDetails replaces the details of the owner's event.
	// It reports whether a row was updated (false means not found / not owned).
	UpdateEventDetails(ctx context.Context, ownerID, eventID int64, details string) (bool, error)

	// SetEventVisibility toggles the public flag of the owner's event.
	SetEventVisibility(ctx context.Context, ownerID, eventID int64, public bool) (bool, error)

	// DeleteEvent removes the owner's event and reports whether a row was deleted.
	DeleteEvent(ctx context.Context, ownerID, eventID int64) (bool, error)

	// GetAppointment returns the appointment by id, or nil if absent.
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)

	// UpdateAppointmentStatus transitions an appointment to a new status.
	UpdateAppointmentStatus(ctx context.Context, id int64, status models.AppointmentStatus) error

	// HasBusyAppointment reports whether the user is organizer or participant
	// of any pending or confirmed appointment at exactly (date, time).
	HasBusyAppointment(ctx context.Context, userID int64, date, timeOfDay string) (bool, error)

	// CreatePendingAppointment re-checks the participant's availability and
	// inserts a pending appointment as a single atomic unit. If the
	// participant is busy it returns models.ErrParticipantBusy and performs
	// no write.
	CreatePendingAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error)

	// IncrementStat adds one to the named counter for the given day,
	// creating the day's row if needed.
	IncrementStat(ctx context.Context, date string, field models.StatField) error

	// ListStats returns all daily statistics rows, most recent first.
	ListStats(ctx context.Context) ([]models.DailyStats, error)

	// Close releases the underlying database resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite or a
	// connection URL for PostgreSQL.
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
