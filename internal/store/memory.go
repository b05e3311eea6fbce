package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calbot/calbot/internal/models"
)

// InMemoryStore is a map-backed Store used by tests. It honors the same
// contracts as the SQL backends, including the atomic busy re-check of
// CreatePendingAppointment (the single mutex covers check and insert).
type InMemoryStore struct {
	mu           sync.Mutex
	users        map[int64]models.User
	events       map[int64]models.Event
	appointments map[int64]models.Appointment
	stats        map[string]models.DailyStats
	nextEventID  int64
	nextApptID   int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:        make(map[int64]models.User),
		events:       make(map[int64]models.Event),
		appointments: make(map[int64]models.Appointment),
		stats:        make(map[string]models.DailyStats),
		nextEventID:  1,
		nextApptID:   1,
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// UpsertUser registers a user or refreshes an existing registration.
func (s *InMemoryStore) UpsertUser(ctx context.Context, user models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.users[user.ID]
	if !existed {
		user.CreatedAt = time.Now()
	}
	s.users[user.ID] = user
	return !existed, nil
}

// UserExists reports whether the user id is registered.
func (s *InMemoryStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok, nil
}

// CreateEvent inserts a new event and returns its id.
func (s *InMemoryStore) CreateEvent(ctx context.Context, ev models.Event) (int64, error) {
	if err := validateEventTimes(ev.Date, ev.Time); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextEventID
	s.nextEventID++
	s.events[ev.ID] = ev
	return ev.ID, nil
}

// GetEvent returns the owner's event, or nil if not found.
func (s *InMemoryStore) GetEvent(ctx context.Context, ownerID, eventID int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.OwnerID != ownerID {
		return nil, nil
	}
	return &ev, nil
}

// ListEvents returns all events of the owner ordered by date, time, id.
func (s *InMemoryStore) ListEvents(ctx context.Context, ownerID int64) ([]models.Event, error) {
	return s.collectEvents(ownerID, false), nil
}

// ListPublicEvents returns the owner's public events ordered by date, time, id.
func (s *InMemoryStore) ListPublicEvents(ctx context.Context, ownerID int64) ([]models.Event, error) {
	return s.collectEvents(ownerID, true), nil
}

func (s *InMemoryStore) collectEvents(ownerID int64, publicOnly bool) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []models.Event
	for _, ev := range s.events {
		if ev.OwnerID != ownerID {
			continue
		}
		if publicOnly && !ev.Public {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// UpdateEventDetails replaces the details of the owner's event.
func (s *InMemoryStore) UpdateEventDetails(ctx context.Context, ownerID, eventID int64, details string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.OwnerID != ownerID {
		return false, nil
	}
	ev.Details = details
	s.events[eventID] = ev
	return true, nil
}

// SetEventVisibility toggles the public flag of the owner's event.
func (s *InMemoryStore) SetEventVisibility(ctx context.Context, ownerID, eventID int64, public bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.OwnerID != ownerID {
		return false, nil
	}
	ev.Public = public
	s.events[eventID] = ev
	return true, nil
}

// DeleteEvent removes the owner's event.
func (s *InMemoryStore) DeleteEvent(ctx context.Context, ownerID, eventID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.OwnerID != ownerID {
		return false, nil
	}
	delete(s.events, eventID)
	return true, nil
}

// GetAppointment returns the appointment by id, or nil if absent.
func (s *InMemoryStore) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil, nil
	}
	return &appt, nil
}

// UpdateAppointmentStatus transitions an appointment to a new status.
func (s *InMemoryStore) UpdateAppointmentStatus(ctx context.Context, id int64, status models.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil
	}
	appt.Status = status
	appt.UpdatedAt = time.Now()
	s.appointments[id] = appt
	return nil
}

// HasBusyAppointment reports whether the user occupies exactly (date, time).
func (s *InMemoryStore) HasBusyAppointment(ctx context.Context, userID int64, date, timeOfDay string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyLocked(userID, date, timeOfDay), nil
}

func (s *InMemoryStore) busyLocked(userID int64, date, timeOfDay string) bool {
	for _, appt := range s.appointments {
		if appt.OrganizerID != userID && appt.ParticipantID != userID {
			continue
		}
		if appt.Date != date || appt.Time != timeOfDay {
			continue
		}
		if appt.Status == models.AppointmentPending || appt.Status == models.AppointmentConfirmed {
			return true
		}
	}
	return false
}

// CreatePendingAppointment re-checks availability and inserts a pending
// appointment under one lock.
func (s *InMemoryStore) CreatePendingAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked(appt.ParticipantID, appt.Date, appt.Time) {
		return nil, models.ErrParticipantBusy
	}
	now := time.Now()
	appt.ID = s.nextApptID
	s.nextApptID++
	appt.Status = models.AppointmentPending
	appt.CreatedAt = now
	appt.UpdatedAt = now
	s.appointments[appt.ID] = appt
	return &appt, nil
}

// IncrementStat adds one to the named counter for the given day.
func (s *InMemoryStore) IncrementStat(ctx context.Context, date string, field models.StatField) error {
	if _, err := statColumn(field); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[date]
	st.Date = date
	switch field {
	case models.StatUsersRegistered:
		st.UsersRegistered++
	case models.StatEventsCreated:
		st.EventsCreated++
	case models.StatEventsEdited:
		st.EventsEdited++
	case models.StatEventsDeleted:
		st.EventsDeleted++
	}
	s.stats[date] = st
	return nil
}

// ListStats returns all daily statistics rows, most recent first.
func (s *InMemoryStore) ListStats(ctx context.Context) ([]models.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats []models.DailyStats
	for _, st := range s.stats {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
	return stats, nil
}
