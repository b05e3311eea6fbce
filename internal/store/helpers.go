package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/calbot/calbot/internal/fsm"
	"github.com/calbot/calbot/internal/models"
)

// DetectDSNType reports which backend a DSN addresses: "postgres" for
// URL-style or key=value connection strings, "sqlite3" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// validateEventTimes re-checks the date and time formats before insertion.
// The flows already validate user input, so a failure here means a caller
// bypassed the dialog layer.
func validateEventTimes(date, timeOfDay string) error {
	if _, ok := fsm.ParseDate(date); !ok {
		return models.ErrInvalidDateTime
	}
	if _, ok := fsm.ParseTime(timeOfDay); !ok {
		return models.ErrInvalidDateTime
	}
	return nil
}

// statColumn maps a StatField to its column name. The whitelist keeps the
// field name out of reach of string interpolation with user input.
func statColumn(field models.StatField) (string, error) {
	switch field {
	case models.StatUsersRegistered:
		return "users_registered", nil
	case models.StatEventsCreated:
		return "events_created", nil
	case models.StatEventsEdited:
		return "events_edited", nil
	case models.StatEventsDeleted:
		return "events_deleted", nil
	default:
		return "", fmt.Errorf("unknown stat field %q", field)
	}
}

// nilIfZero returns nil if id is zero, otherwise id.
// Used for the nullable event reference column on appointments.
func nilIfZero(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// scanEvent scans an Event from sql.Rows.
func scanEvent(rows *sql.Rows) (models.Event, error) {
	var ev models.Event
	err := rows.Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.Date, &ev.Time, &ev.Details, &ev.Public)
	if err != nil {
		return ev, fmt.Errorf("scan event failed: %w", err)
	}
	return ev, nil
}

// scanAppointmentRow scans an Appointment from a single sql.Row.
func scanAppointmentRow(row *sql.Row) (models.Appointment, error) {
	var a models.Appointment
	var eventID sql.NullInt64
	err := row.Scan(
		&a.ID, &eventID, &a.OrganizerID, &a.ParticipantID,
		&a.Date, &a.Time, &a.Details, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}
	a.EventID = eventID.Int64
	return a, nil
}
