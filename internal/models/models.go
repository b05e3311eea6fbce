// Package models defines the core data structures for the calendar bot.
//
// It includes calendar events, appointments between users, registered users,
// and daily usage statistics, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// AppointmentStatus describes the lifecycle state of an appointment.
type AppointmentStatus string

const (
	// AppointmentPending means the participant has not yet decided.
	AppointmentPending AppointmentStatus = "pending"
	// AppointmentConfirmed means the participant accepted the invitation.
	AppointmentConfirmed AppointmentStatus = "confirmed"
	// AppointmentCancelled means the invitation was withdrawn or undeliverable.
	AppointmentCancelled AppointmentStatus = "cancelled"
	// AppointmentDeclined means the participant rejected the invitation.
	AppointmentDeclined AppointmentStatus = "declined"
)

// IsValidAppointmentStatus checks if the given status is supported.
func IsValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled, AppointmentDeclined:
		return true
	default:
		return false
	}
}

// Error variables for expected domain outcomes. These are normal results of
// user actions, not infrastructure faults, and are matched with errors.Is.
var (
	ErrParticipantBusy = errors.New("participant is busy at that time")
	ErrInvalidDateTime = errors.New("date must be in YYYY-MM-DD format and time in HH:MM format")
)

// Event is a calendar event owned by a single bot user.
type Event struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"tg_user_id"`
	Name    string `json:"name"`
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // HH:MM
	Details string `json:"details"`
	Public  bool   `json:"is_public"`
}

// String renders the event in the single-line list format used by the bot.
func (e Event) String() string {
	return fmt.Sprintf("ID: %d | %s %s | %s", e.ID, e.Date, e.Time, e.Name)
}

// Appointment is a meeting between an organizer and a participant, optionally
// referencing the organizer's source event.
type Appointment struct {
	ID            int64             `json:"id"`
	EventID       int64             `json:"event_id,omitempty"` // 0 means no source event
	OrganizerID   int64             `json:"organizer_tg_id"`
	ParticipantID int64             `json:"participant_tg_id"`
	Date          string            `json:"date"` // YYYY-MM-DD
	Time          string            `json:"time"` // HH:MM
	Details       string            `json:"details"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// User is a registered bot user, keyed by Telegram user id.
type User struct {
	ID        int64     `json:"tg_user_id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	CreatedAt time.Time `json:"created_at"`
}

// StatField identifies one daily usage counter.
type StatField string

const (
	StatUsersRegistered StatField = "users_registered"
	StatEventsCreated   StatField = "events_created"
	StatEventsEdited    StatField = "events_edited"
	StatEventsDeleted   StatField = "events_deleted"
)

// DailyStats aggregates bot activity for a single calendar day.
type DailyStats struct {
	Date            string `json:"date"` // YYYY-MM-DD
	UsersRegistered int64  `json:"users_registered"`
	EventsCreated   int64  `json:"events_created"`
	EventsEdited    int64  `json:"events_edited"`
	EventsDeleted   int64  `json:"events_deleted"`
}
