package flows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/calbot/calbot/internal/fsm"
	"github.com/calbot/calbot/internal/models"
	"github.com/calbot/calbot/internal/scheduling"
	"github.com/calbot/calbot/internal/stats"
	"github.com/calbot/calbot/internal/store"
)

// sentInvite records one SendInvite call on the fake messenger.
type sentInvite struct {
	participantID int64
	text          string
	appointmentID int64
}

// fakeMessenger records outbound messages and can simulate delivery failure.
type fakeMessenger struct {
	texts     map[int64][]string
	invites   []sentInvite
	inviteErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{texts: make(map[int64][]string)}
}

func (m *fakeMessenger) SendText(ctx context.Context, userID int64, text string) error {
	m.texts[userID] = append(m.texts[userID], text)
	return nil
}

func (m *fakeMessenger) SendInvite(ctx context.Context, participantID int64, text string, appointmentID int64) error {
	if m.inviteErr != nil {
		return m.inviteErr
	}
	m.invites = append(m.invites, sentInvite{participantID, text, appointmentID})
	return nil
}

// lastText returns the most recent message sent to the user.
func (m *fakeMessenger) lastText(userID int64) string {
	msgs := m.texts[userID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type testEnv struct {
	handler   *Handler
	store     *store.InMemoryStore
	states    *fsm.InMemoryStateStore
	messenger *fakeMessenger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewInMemoryStore()
	states := fsm.NewInMemoryStateStore()
	messenger := newFakeMessenger()
	handler := NewHandler(Dependencies{
		States:    states,
		Store:     st,
		Checker:   scheduling.NewChecker(st),
		Messenger: messenger,
		Stats:     stats.NewTracker(st),
	})
	return &testEnv{handler: handler, store: st, states: states, messenger: messenger}
}

func (e *testEnv) register(t *testing.T, userID int64) {
	t.Helper()
	if _, err := e.store.UpsertUser(context.Background(), models.User{ID: userID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartCreate(ctx, 1)
	e.handler.HandleText(ctx, 1, "Meeting")
	e.handler.HandleText(ctx, 1, "2025-12-01")
	e.handler.HandleText(ctx, 1, "14:30")
	e.handler.HandleText(ctx, 1, "Discuss budget")

	events, err := e.store.ListEvents(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Name != "Meeting" || ev.Date != "2025-12-01" || ev.Time != "14:30" || ev.Details != "Discuss budget" {
		t.Errorf("event fields wrong: %+v", ev)
	}
	if ev.OwnerID != 1 {
		t.Errorf("expected initiator as owner, got %d", ev.OwnerID)
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after completion")
	}
	if !strings.Contains(e.messenger.lastText(1), "ID: 1") {
		t.Errorf("expected success message with event id, got %q", e.messenger.lastText(1))
	}

	rows, _ := e.store.ListStats(ctx)
	if len(rows) != 1 || rows[0].EventsCreated != 1 {
		t.Errorf("expected created-event counter bump, got %+v", rows)
	}
}

func TestCreateFlowInvalidDateRecovery(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartCreate(ctx, 1)
	e.handler.HandleText(ctx, 1, "Meeting")
	e.handler.HandleText(ctx, 1, "not-a-date")

	state := e.states.GetState(1)
	if state.Step != models.StepCreateWaitDate {
		t.Fatalf("expected to stay at date step, got %q", state.Step)
	}
	if state.Data[models.DataKeyName] != "Meeting" {
		t.Error("scratch mutated on invalid input")
	}
	if !strings.Contains(e.messenger.lastText(1), "Invalid format") {
		t.Errorf("expected re-prompt, got %q", e.messenger.lastText(1))
	}

	// A valid date afterwards advances normally.
	e.handler.HandleText(ctx, 1, "2025-12-01")
	if e.states.GetState(1).Step != models.StepCreateWaitTime {
		t.Errorf("expected to advance to time step, got %q", e.states.GetState(1).Step)
	}
}

func TestCancelKeywordTerminatesAnyStep(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartCreate(ctx, 1)
	e.handler.HandleText(ctx, 1, "Meeting")
	e.handler.HandleText(ctx, 1, "CaNcEl")

	if e.states.GetState(1).Active() {
		t.Error("expected state cleared on cancel keyword")
	}
	if e.messenger.lastText(1) != msgCancelled {
		t.Errorf("expected cancellation acknowledged, got %q", e.messenger.lastText(1))
	}
	if events, _ := e.store.ListEvents(ctx, 1); len(events) != 0 {
		t.Error("cancelled flow must not persist anything")
	}
}

func TestFlowStartRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	e.handler.StartCreate(ctx, 5)
	if e.states.GetState(5).Active() {
		t.Error("unregistered user must not enter a flow")
	}
	if e.messenger.lastText(5) != msgRegisterFirst {
		t.Errorf("expected register prompt, got %q", e.messenger.lastText(5))
	}
}

func TestStartingNewFlowReplacesOldOne(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartCreate(ctx, 1)
	e.handler.HandleText(ctx, 1, "Meeting")
	e.handler.StartDelete(ctx, 1, "")

	state := e.states.GetState(1)
	if state.Flow != models.FlowDelete || state.Step != models.StepDeleteWaitID {
		t.Errorf("expected DELETE flow to replace CREATE, got %q/%q", state.Flow, state.Step)
	}
}

func TestRouterFallbackWithoutActiveFlow(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	e.handler.HandleText(ctx, 1, "hello there")
	if e.messenger.lastText(1) != msgUnknownInput {
		t.Errorf("expected fallback message, got %q", e.messenger.lastText(1))
	}
}

func TestEditFlowStepwise(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	id, _ := e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "e", Date: "2025-12-01", Time: "10:00", Details: "old"})

	e.handler.StartEdit(ctx, 1, "")
	e.handler.HandleText(ctx, 1, "999")
	if e.states.GetState(1).Step != models.StepEditWaitID {
		t.Error("unknown event id must re-prompt, not advance")
	}
	e.handler.HandleText(ctx, 1, "1")
	if e.states.GetState(1).Step != models.StepEditWaitNewDetails {
		t.Fatalf("expected details step, got %q", e.states.GetState(1).Step)
	}
	e.handler.HandleText(ctx, 1, "new details")

	ev, _ := e.store.GetEvent(ctx, 1, id)
	if ev.Details != "new details" {
		t.Errorf("expected details updated, got %q", ev.Details)
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after terminal step")
	}
}

func TestEditInlineShortcutBypassesFSM(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	id, _ := e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "e", Date: "2025-12-01", Time: "10:00"})

	e.handler.StartEdit(ctx, 1, "1 quick new text")

	if e.states.GetState(1).Active() {
		t.Error("inline shortcut must not touch the state store")
	}
	ev, _ := e.store.GetEvent(ctx, 1, id)
	if ev.Details != "quick new text" {
		t.Errorf("expected inline update applied, got %q", ev.Details)
	}
	if e.messenger.lastText(1) != "Updated." {
		t.Errorf("expected update confirmation, got %q", e.messenger.lastText(1))
	}
}

func TestDeleteFlowNotFoundOutcome(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartDelete(ctx, 1, "")
	e.handler.HandleText(ctx, 1, "42")

	if e.messenger.lastText(1) != "Event not found." {
		t.Errorf("expected not-found outcome, got %q", e.messenger.lastText(1))
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after terminal step")
	}
}

func TestInviteSelfInviteRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartInvite(ctx, 1)
	e.handler.HandleText(ctx, 1, "1")

	state := e.states.GetState(1)
	if state.Step != models.StepInviteWaitParticipantID {
		t.Errorf("self-invite must not advance, got step %q", state.Step)
	}
	if appt, _ := e.store.GetAppointment(ctx, 1); appt != nil {
		t.Error("self-invite must never create an appointment")
	}
}

func TestInviteForeignEventRePrompts(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 2, Name: "not mine", Date: "2025-12-01", Time: "10:00"})

	e.handler.StartInvite(ctx, 1)
	e.handler.HandleText(ctx, 1, "2")
	e.handler.HandleText(ctx, 1, "1") // event id owned by user 2

	if e.states.GetState(1).Step != models.StepInviteWaitEventID {
		t.Errorf("foreign event must re-prompt, got step %q", e.states.GetState(1).Step)
	}
}

func TestInviteHappyPath(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "Sync", Date: "2025-12-01", Time: "10:00", Details: "weekly"})

	e.handler.StartInvite(ctx, 1)
	e.handler.HandleText(ctx, 1, "2")
	e.handler.HandleText(ctx, 1, "1")
	e.handler.HandleText(ctx, 1, "skip")

	if len(e.messenger.invites) != 1 {
		t.Fatalf("expected one delivered invite, got %d", len(e.messenger.invites))
	}
	inv := e.messenger.invites[0]
	if inv.participantID != 2 {
		t.Errorf("invite sent to wrong user: %d", inv.participantID)
	}
	// "skip" falls back to the event's own details.
	if !strings.Contains(inv.text, "weekly") {
		t.Errorf("expected event details in invite text, got %q", inv.text)
	}
	appt, _ := e.store.GetAppointment(ctx, inv.appointmentID)
	if appt == nil || appt.Status != models.AppointmentPending {
		t.Fatalf("expected pending appointment, got %+v", appt)
	}
	if e.messenger.lastText(1) != "Invitation sent. Status: pending." {
		t.Errorf("unexpected organizer reply: %q", e.messenger.lastText(1))
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after completion")
	}
}

func TestInviteBusyParticipant(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "Sync", Date: "2025-12-01", Time: "10:00"})
	// Participant 2 already has a pending appointment at the same slot.
	if _, err := e.store.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 9, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.handler.StartInvite(ctx, 1)
	e.handler.HandleText(ctx, 1, "2")
	e.handler.HandleText(ctx, 1, "1")
	e.handler.HandleText(ctx, 1, "skip")

	if e.messenger.lastText(1) != "The participant is busy at that time." {
		t.Errorf("expected busy outcome, got %q", e.messenger.lastText(1))
	}
	// No second appointment may exist.
	if appt, _ := e.store.GetAppointment(ctx, 2); appt != nil {
		t.Error("busy path must not create an appointment")
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after busy outcome")
	}
}

func TestInviteDeliveryFailureCancelsAppointment(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "Sync", Date: "2025-12-01", Time: "10:00"})
	e.messenger.inviteErr = errors.New("participant never started the bot")

	e.handler.StartInvite(ctx, 1)
	e.handler.HandleText(ctx, 1, "2")
	e.handler.HandleText(ctx, 1, "1")
	e.handler.HandleText(ctx, 1, "note for you")

	appt, _ := e.store.GetAppointment(ctx, 1)
	if appt == nil {
		t.Fatal("expected appointment to exist")
	}
	if appt.Status != models.AppointmentCancelled {
		t.Errorf("undelivered invite must be cancelled, got %q", appt.Status)
	}
	if !strings.Contains(e.messenger.lastText(1), "could not be delivered") {
		t.Errorf("expected delivery failure report, got %q", e.messenger.lastText(1))
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after delivery failure")
	}
}

func TestShareFlow(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	id, _ := e.store.CreateEvent(ctx, models.Event{OwnerID: 1, Name: "e", Date: "2025-12-01", Time: "10:00"})

	e.handler.StartShare(ctx, 1)
	e.handler.HandleText(ctx, 1, "1")

	// An unexpected choice re-prompts without advancing or clearing.
	e.handler.HandleText(ctx, 1, "publish it")
	if e.states.GetState(1).Step != models.StepShareWaitVisibility {
		t.Fatal("invalid choice must keep the visibility step")
	}

	e.handler.HandleText(ctx, 1, "Make Public")
	ev, _ := e.store.GetEvent(ctx, 1, id)
	if !ev.Public {
		t.Error("expected event made public")
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after terminal step")
	}
}

func TestShareFlowForeignEventNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 2, Name: "foreign", Date: "2025-12-01", Time: "10:00"})

	e.handler.StartShare(ctx, 1)
	e.handler.HandleText(ctx, 1, "1")
	e.handler.HandleText(ctx, 1, "make private")

	if e.messenger.lastText(1) != "Event not found among your events." {
		t.Errorf("expected not-owned outcome, got %q", e.messenger.lastText(1))
	}
	// Ownership is enforced at persist time; the foreign event is untouched.
	ev, _ := e.store.GetEvent(ctx, 2, 1)
	if ev == nil {
		t.Fatal("foreign event vanished")
	}
}

func TestPublicOfFlowEmptyCase(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)

	e.handler.StartPublicOf(ctx, 1)
	e.handler.HandleText(ctx, 1, "77")

	if e.messenger.lastText(1) != "This user has no public events." {
		t.Errorf("expected explicit empty message, got %q", e.messenger.lastText(1))
	}
	if e.states.GetState(1).Active() {
		t.Error("expected state cleared after the single step")
	}
}

func TestPublicOfFlowListsOnlyPublicEvents(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.register(t, 1)
	e.store.CreateEvent(ctx, models.Event{OwnerID: 7, Name: "Open day", Date: "2025-12-01", Time: "10:00", Public: true})
	e.store.CreateEvent(ctx, models.Event{OwnerID: 7, Name: "Private dinner", Date: "2025-12-01", Time: "19:00"})

	e.handler.StartPublicOf(ctx, 1)
	e.handler.HandleText(ctx, 1, "7")

	got := e.messenger.lastText(1)
	if !strings.Contains(got, "Open day") {
		t.Errorf("expected public event listed, got %q", got)
	}
	if strings.Contains(got, "Private dinner") {
		t.Errorf("private event leaked: %q", got)
	}
}

func TestDecideAppointment(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	appt, _ := e.store.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 1, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	})

	// Only the participant may decide.
	if got := e.handler.DecideAppointment(ctx, 3, appt.ID, true); got != "You are not the participant of this appointment." {
		t.Errorf("expected participant check, got %q", got)
	}

	if got := e.handler.DecideAppointment(ctx, 2, appt.ID, true); got != "Meeting confirmed." {
		t.Errorf("expected confirmation, got %q", got)
	}
	stored, _ := e.store.GetAppointment(ctx, appt.ID)
	if stored.Status != models.AppointmentConfirmed {
		t.Errorf("expected confirmed status, got %q", stored.Status)
	}
	// The organizer is notified.
	if len(e.messenger.texts[1]) == 0 || !strings.Contains(e.messenger.lastText(1), "confirmed") {
		t.Errorf("expected organizer notice, got %v", e.messenger.texts[1])
	}

	// A decided appointment cannot be decided again.
	if got := e.handler.DecideAppointment(ctx, 2, appt.ID, false); got != "Current status: confirmed." {
		t.Errorf("expected status report, got %q", got)
	}
}

func TestDecideAppointmentDeclineReleasesSlot(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	appt, _ := e.store.CreatePendingAppointment(ctx, models.Appointment{
		OrganizerID: 1, ParticipantID: 2, Date: "2025-12-01", Time: "10:00",
	})

	if got := e.handler.DecideAppointment(ctx, 2, appt.ID, false); got != "Meeting declined." {
		t.Errorf("expected decline, got %q", got)
	}
	free, err := scheduling.NewChecker(e.store).IsFree(ctx, 2, "2025-12-01", "10:00")
	if err != nil || !free {
		t.Errorf("declined appointment must not occupy the slot, free=%v err=%v", free, err)
	}
}
