package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calbot/calbot/internal/models"
)

func TestInMemoryStoreEvents(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	id, err := s.CreateEvent(ctx, models.Event{
		OwnerID: 1, Name: "Meeting", Date: "2025-12-01", Time: "14:30", Details: "Discuss budget",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero event id")
	}

	ev, err := s.GetEvent(ctx, 1, id)
	if err != nil || ev == nil {
		t.Fatalf("expected event, got %v err=%v", ev, err)
	}
	if ev.Name != "Meeting" || ev.Date != "2025-12-01" || ev.Time != "14:30" {
		t.Errorf("event fields not persisted: %+v", ev)
	}

	// Other owners must not see the event.
	if ev, _ := s.GetEvent(ctx, 2, id); ev != nil {
		t.Error("event visible to non-owner")
	}

	ok, err := s.UpdateEventDetails(ctx, 1, id, "new details")
	if err != nil || !ok {
		t.Fatalf("expected update, got ok=%v err=%v", ok, err)
	}
	if ok, _ := s.UpdateEventDetails(ctx, 2, id, "hijack"); ok {
		t.Error("non-owner update affected a row")
	}

	ok, err = s.DeleteEvent(ctx, 1, id)
	if err != nil || !ok {
		t.Fatalf("expected delete, got ok=%v err=%v", ok, err)
	}
	if ok, _ := s.DeleteEvent(ctx, 1, id); ok {
		t.Error("second delete reported a deleted row")
	}
}

func TestCreateEventRejectsMalformedDateTime(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "x", Date: "2025/12/01", Time: "14:30"})
	if !errors.Is(err, models.ErrInvalidDateTime) {
		t.Errorf("expected ErrInvalidDateTime for bad date, got %v", err)
	}
	_, err = s.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "x", Date: "2025-12-01", Time: "25:00"})
	if !errors.Is(err, models.ErrInvalidDateTime) {
		t.Errorf("expected ErrInvalidDateTime for bad time, got %v", err)
	}
}

func TestInMemoryStorePublicEventsOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	mk := func(date, tm string, public bool) {
		t.Helper()
		_, err := s.CreateEvent(ctx, models.Event{OwnerID: 5, Name: "e", Date: date, Time: tm, Public: public})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	mk("2025-12-02", "09:00", true)
	mk("2025-12-01", "15:00", true)
	mk("2025-12-01", "10:00", false)
	mk("2025-12-01", "10:00", true)

	events, err := s.ListPublicEvents(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 public events, got %d", len(events))
	}
	if events[0].Date != "2025-12-01" || events[0].Time != "10:00" {
		t.Errorf("expected date/time ordering, got first %+v", events[0])
	}
	if events[2].Date != "2025-12-02" {
		t.Errorf("expected latest date last, got %+v", events[2])
	}
}

func TestInMemoryStoreUpsertUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created, err := s.UpsertUser(ctx, models.User{ID: 10, Username: "alice"})
	if err != nil || !created {
		t.Fatalf("expected first upsert to create, got created=%v err=%v", created, err)
	}
	created, err = s.UpsertUser(ctx, models.User{ID: 10, Username: "alice2"})
	if err != nil || created {
		t.Fatalf("expected second upsert to update, got created=%v err=%v", created, err)
	}
	exists, err := s.UserExists(ctx, 10)
	if err != nil || !exists {
		t.Fatalf("expected user to exist, got exists=%v err=%v", exists, err)
	}
}

func TestCreatePendingAppointmentBusyCheck(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	appt, err := s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 1, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != models.AppointmentPending {
		t.Errorf("expected pending status, got %q", appt.Status)
	}

	// Same participant, same slot: busy.
	_, err = s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 3, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	})
	if !errors.Is(err, models.ErrParticipantBusy) {
		t.Errorf("expected ErrParticipantBusy, got %v", err)
	}

	// The organizer of an existing appointment is busy too.
	_, err = s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 3, ParticipantID: 1, Date: "2025-12-01", Time: "10:00",
	})
	if !errors.Is(err, models.ErrParticipantBusy) {
		t.Errorf("expected organizer side to count as busy, got %v", err)
	}

	// Different time: free.
	if _, err := s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 3, ParticipantID: 2, Date: "2025-12-01", Time: "11:00",
	}); err != nil {
		t.Errorf("expected free slot, got %v", err)
	}

	// Cancelled appointments release the slot.
	if err := s.UpdateAppointmentStatus(ctx, appt.ID, models.AppointmentCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 3, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	}); err != nil {
		t.Errorf("expected slot free after cancellation, got %v", err)
	}
}

func TestInMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	for i := 0; i < 3; i++ {
		if err := s.IncrementStat(ctx, "2025-12-01", models.StatEventsCreated); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.IncrementStat(ctx, "2025-12-02", models.StatUsersRegistered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := s.ListStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stat rows, got %d", len(stats))
	}
	if stats[0].Date != "2025-12-02" {
		t.Errorf("expected most recent day first, got %q", stats[0].Date)
	}
	if stats[1].EventsCreated != 3 {
		t.Errorf("expected 3 created events, got %d", stats[1].EventsCreated)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "calbot_test.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Skipf("SQLite not available: %v", err)
	}
	defer s.Close()

	id, err := s.CreateEvent(ctx, models.Event{
		OwnerID: 1, Name: "Meeting", Date: "2025-12-01", Time: "14:30", Details: "notes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, err := s.GetEvent(ctx, 1, id)
	if err != nil || ev == nil || ev.Name != "Meeting" {
		t.Fatalf("event not stored or retrieved correctly: %+v err=%v", ev, err)
	}

	appt, err := s.CreatePendingAppointment(ctx, models.Appointment{
		EventID: id, OrganizerID: 1, ParticipantID: 2, Date: "2025-12-01", Time: "14:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = s.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 9, ParticipantID: 2, Date: "2025-12-01", Time: "14:30",
	})
	if !errors.Is(err, models.ErrParticipantBusy) {
		t.Errorf("expected ErrParticipantBusy, got %v", err)
	}

	got, err := s.GetAppointment(ctx, appt.ID)
	if err != nil || got == nil || got.Status != models.AppointmentPending {
		t.Fatalf("appointment not stored correctly: %+v err=%v", got, err)
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for the connection string.
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("env DATABASE_URL not set")
	}
	s, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateEvent(ctx, models.Event{
		OwnerID: 1, Name: "Meeting", Date: "2025-12-01", Time: "14:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.DeleteEvent(ctx, 1, id)

	ev, err := s.GetEvent(ctx, 1, id)
	if err != nil || ev == nil || ev.Name != "Meeting" {
		t.Fatalf("event not stored or retrieved correctly in Postgres: %+v err=%v", ev, err)
	}
}
