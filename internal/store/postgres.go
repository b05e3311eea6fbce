// Package store provides storage backends for the calendar bot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/calbot/calbot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on top of a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store initialized")
	return &PostgresStore{db: db}, nil
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// UpsertUser registers a user or refreshes an existing registration.
func (s *PostgresStore) UpsertUser(ctx context.Context, user models.User) (bool, error) {
	existed, err := s.UserExists(ctx, user.ID)
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (tg_user_id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tg_user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name`,
		user.ID, user.Username, user.FirstName)
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "userID", user.ID)
		return false, fmt.Errorf("upsert user failed: %w", err)
	}
	slog.Debug("PostgresStore UpsertUser", "userID", user.ID, "created", !existed)
	return !existed, nil
}

// UserExists reports whether the user id is registered.
func (s *PostgresStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE tg_user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		slog.Error("PostgresStore UserExists failed", "error", err, "userID", userID)
		return false, fmt.Errorf("user exists check failed: %w", err)
	}
	return exists, nil
}

// CreateEvent inserts a new event and returns its id.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev models.Event) (int64, error) {
	if err := validateEventTimes(ev.Date, ev.Time); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO events (user_id, name, date, time, details, is_public)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ev.OwnerID, ev.Name, ev.Date, ev.Time, ev.Details, ev.Public).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore CreateEvent failed", "error", err, "ownerID", ev.OwnerID)
		return 0, fmt.Errorf("create event failed: %w", err)
	}
	slog.Debug("PostgresStore CreateEvent", "ownerID", ev.OwnerID, "eventID", id)
	return id, nil
}

// GetEvent returns the owner's event, or nil if not found.
func (s *PostgresStore) GetEvent(ctx context.Context, ownerID, eventID int64) (*models.Event, error) {
	var ev models.Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, date, time, details, is_public
		FROM events WHERE id = $1 AND user_id = $2`,
		eventID, ownerID).Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.Date, &ev.Time, &ev.Details, &ev.Public)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetEvent failed", "error", err, "ownerID", ownerID, "eventID", eventID)
		return nil, fmt.Errorf("get event failed: %w", err)
	}
	return &ev, nil
}

// ListEvents returns all events of the owner ordered by date, time, id.
func (s *PostgresStore) ListEvents(ctx context.Context, ownerID int64) ([]models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, user_id, name, date, time, details, is_public
		FROM events WHERE user_id = $1
		ORDER BY date, time, id`, ownerID)
}

// ListPublicEvents returns the owner's public events ordered by date, time, id.
func (s *PostgresStore) ListPublicEvents(ctx context.Context, ownerID int64) ([]models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, user_id, name, date, time, details, is_public
		FROM events WHERE user_id = $1 AND is_public = TRUE
		ORDER BY date, time, id`, ownerID)
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore event query failed", "error", err)
		return nil, fmt.Errorf("event query failed: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpdateEventDetails replaces the details of the owner's event.
func (s *PostgresStore) UpdateEventDetails(ctx context.Context, ownerID, eventID int64, details string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET details = $1 WHERE id = $2 AND user_id = $3`,
		details, eventID, ownerID)
	if err != nil {
		slog.Error("PostgresStore UpdateEventDetails failed", "error", err, "eventID", eventID)
		return false, fmt.Errorf("update event details failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update event details rows failed: %w", err)
	}
	return n > 0, nil
}

// SetEventVisibility toggles the public flag of the owner's event.
func (s *PostgresStore) SetEventVisibility(ctx context.Context, ownerID, eventID int64, public bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET is_public = $1 WHERE id = $2 AND user_id = $3`,
		public, eventID, ownerID)
	if err != nil {
		slog.Error("PostgresStore SetEventVisibility failed", "error", err, "eventID", eventID)
		return false, fmt.Errorf("set event visibility failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set event visibility rows failed: %w", err)
	}
	return n > 0, nil
}

// DeleteEvent removes the owner's event.
func (s *PostgresStore) DeleteEvent(ctx context.Context, ownerID, eventID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = $1 AND user_id = $2`, eventID, ownerID)
	if err != nil {
		slog.Error("PostgresStore DeleteEvent failed", "error", err, "eventID", eventID)
		return false, fmt.Errorf("delete event failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete event rows failed: %w", err)
	}
	return n > 0, nil
}

// GetAppointment returns the appointment by id, or nil if absent.
func (s *PostgresStore) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, organizer_tg_id, participant_tg_id, date, time, details, status, created_at, updated_at
		FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointmentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAppointment failed", "error", err, "id", id)
		return nil, fmt.Errorf("get appointment failed: %w", err)
	}
	return &appt, nil
}

// UpdateAppointmentStatus transitions an appointment to a new status.
func (s *PostgresStore) UpdateAppointmentStatus(ctx context.Context, id int64, status models.AppointmentStatus) error {
	if !models.IsValidAppointmentStatus(status) {
		return fmt.Errorf("invalid appointment status %q", status)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		slog.Error("PostgresStore UpdateAppointmentStatus failed", "error", err, "id", id, "status", status)
		return fmt.Errorf("update appointment status failed: %w", err)
	}
	slog.Debug("PostgresStore UpdateAppointmentStatus", "id", id, "status", status)
	return nil
}

// HasBusyAppointment reports whether the user occupies exactly (date, time).
func (s *PostgresStore) HasBusyAppointment(ctx context.Context, userID int64, date, timeOfDay string) (bool, error) {
	var busy bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE (organizer_tg_id = $1 OR participant_tg_id = $1)
			  AND date = $2 AND time = $3
			  AND status IN ('pending', 'confirmed'))`,
		userID, date, timeOfDay).Scan(&busy)
	if err != nil {
		slog.Error("PostgresStore HasBusyAppointment failed", "error", err, "userID", userID)
		return false, fmt.Errorf("busy check failed: %w", err)
	}
	return busy, nil
}

// CreatePendingAppointment re-checks availability and inserts a pending
// appointment inside one transaction. A transaction-scoped advisory lock on
// the participant id keeps two concurrent invitations for the same
// participant from both observing a free slot.
func (s *PostgresStore) CreatePendingAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appt.ParticipantID); err != nil {
		return nil, fmt.Errorf("advisory lock failed: %w", err)
	}

	var busy bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE (organizer_tg_id = $1 OR participant_tg_id = $1)
			  AND date = $2 AND time = $3
			  AND status IN ('pending', 'confirmed'))`,
		appt.ParticipantID, appt.Date, appt.Time).Scan(&busy)
	if err != nil {
		return nil, fmt.Errorf("busy re-check failed: %w", err)
	}
	if busy {
		slog.Debug("PostgresStore CreatePendingAppointment participant busy",
			"participantID", appt.ParticipantID, "date", appt.Date, "time", appt.Time)
		return nil, models.ErrParticipantBusy
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO appointments (event_id, organizer_tg_id, participant_tg_id, date, time, details, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, created_at, updated_at`,
		nilIfZero(appt.EventID), appt.OrganizerID, appt.ParticipantID, appt.Date, appt.Time, appt.Details).
		Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert appointment failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit appointment failed: %w", err)
	}

	appt.Status = models.AppointmentPending
	slog.Debug("PostgresStore CreatePendingAppointment", "id", appt.ID,
		"organizerID", appt.OrganizerID, "participantID", appt.ParticipantID)
	return &appt, nil
}

// IncrementStat adds one to the named counter for the given day.
func (s *PostgresStore) IncrementStat(ctx context.Context, date string, field models.StatField) error {
	col, err := statColumn(field)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO bot_statistics (date, %s) VALUES ($1, 1)
		ON CONFLICT (date) DO UPDATE SET %s = bot_statistics.%s + 1`, col, col, col)
	if _, err := s.db.ExecContext(ctx, query, date); err != nil {
		slog.Error("PostgresStore IncrementStat failed", "error", err, "date", date, "field", field)
		return fmt.Errorf("increment stat failed: %w", err)
	}
	return nil
}

// ListStats returns all daily statistics rows, most recent first.
func (s *PostgresStore) ListStats(ctx context.Context) ([]models.DailyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, users_registered, events_created, events_edited, events_deleted
		FROM bot_statistics ORDER BY date DESC`)
	if err != nil {
		slog.Error("PostgresStore ListStats failed", "error", err)
		return nil, fmt.Errorf("list stats failed: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStats
	for rows.Next() {
		var st models.DailyStats
		if err := rows.Scan(&st.Date, &st.UsersRegistered, &st.EventsCreated, &st.EventsEdited, &st.EventsDeleted); err != nil {
			return nil, fmt.Errorf("scan stats failed: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
