package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calbot/calbot/internal/models"
)

// StartInvite begins the meeting invitation dialog.
func (h *Handler) StartInvite(ctx context.Context, userID int64) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	h.deps.States.SetState(userID, models.FlowInvite, models.StepInviteWaitParticipantID, nil)
	h.reply(ctx, userID, "Enter the participant's TG ID (a number):")
}

// inviteStep advances the INVITE dialog:
// WAIT_PARTICIPANT_ID -> WAIT_EVENT_ID -> WAIT_DETAILS -> conflict check + persist.
func (h *Handler) inviteStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}
	data := state.Data

	switch state.Step {
	case models.StepInviteWaitParticipantID:
		participantID, ok := parseID(msg)
		if !ok || participantID <= 0 {
			h.reply(ctx, userID, "The TG ID must be a positive number. Try again:")
			return
		}
		if participantID == userID {
			h.reply(ctx, userID, "You cannot invite yourself. Enter another user's TG ID:")
			return
		}
		data[models.DataKeyParticipantID] = strconv.FormatInt(participantID, 10)
		h.deps.States.SetState(userID, models.FlowInvite, models.StepInviteWaitEventID, data)
		h.reply(ctx, userID, "Enter the event ID (one of your events):")

	case models.StepInviteWaitEventID:
		eventID, ok := parseID(msg)
		if !ok || eventID <= 0 {
			h.reply(ctx, userID, "The event ID must be a positive number. Try again:")
			return
		}
		// The lookup is owner-scoped, so both unknown and foreign-owned
		// events come back nil.
		ev, err := h.deps.Store.GetEvent(ctx, userID, eventID)
		if err != nil {
			slog.Error("Invite event lookup failed", "error", err, "userID", userID, "eventID", eventID)
			h.deps.States.ClearState(userID)
			h.reply(ctx, userID, msgStorageError)
			return
		}
		if ev == nil {
			h.reply(ctx, userID, "Event not found among your events. Enter a valid ID:")
			return
		}
		data[models.DataKeyEventID] = strconv.FormatInt(eventID, 10)
		h.deps.States.SetState(userID, models.FlowInvite, models.StepInviteWaitDetails, data)
		h.reply(ctx, userID, `Add a note for the participant, or write "skip":`)

	case models.StepInviteWaitDetails:
		// Terminal step: state clears in every outcome.
		defer h.deps.States.ClearState(userID)

		details := msg
		if strings.EqualFold(msg, SkipKeyword) {
			details = ""
		}
		h.finishInvite(ctx, userID, data, details)

	default:
		h.desync(ctx, userID, state)
	}
}

// finishInvite performs the terminal step: conflict check, pending
// appointment creation, and invitation delivery.
func (h *Handler) finishInvite(ctx context.Context, userID int64, data map[models.DataKey]string, details string) {
	participantID, errP := strconv.ParseInt(data[models.DataKeyParticipantID], 10, 64)
	eventID, errE := strconv.ParseInt(data[models.DataKeyEventID], 10, 64)
	if errP != nil || errE != nil {
		h.desync(ctx, userID, models.ConversationState{UserID: userID, Flow: models.FlowInvite})
		return
	}

	ev, err := h.deps.Store.GetEvent(ctx, userID, eventID)
	if err != nil || ev == nil {
		slog.Error("Invite event reload failed", "error", err, "userID", userID, "eventID", eventID)
		h.reply(ctx, userID, msgStorageError)
		return
	}

	free, err := h.deps.Checker.IsFree(ctx, participantID, ev.Date, ev.Time)
	if err != nil {
		slog.Error("Invite availability check failed", "error", err, "participantID", participantID)
		h.reply(ctx, userID, msgStorageError)
		return
	}
	if !free {
		h.reply(ctx, userID, "The participant is busy at that time.")
		return
	}

	// The checker re-validates availability atomically with the insert, so
	// a race with a concurrent invitation still cannot double-book.
	appt, err := h.deps.Checker.CreatePendingInvite(ctx, userID, participantID, *ev, details)
	if errors.Is(err, models.ErrParticipantBusy) {
		h.reply(ctx, userID, "The participant is busy at that time.")
		return
	}
	if err != nil {
		slog.Error("Invite creation failed", "error", err, "userID", userID, "participantID", participantID)
		h.reply(ctx, userID, "Could not create the invitation.")
		return
	}

	inviteText := fmt.Sprintf(
		"You have been invited to a meeting:\n\nDate/time: %s %s\nTopic: %s\nDetails: %s\n\nOrganizer: %d",
		ev.Date, ev.Time, ev.Name, appt.Details, userID)
	if err := h.deps.Messenger.SendInvite(ctx, participantID, inviteText, appt.ID); err != nil {
		// Never leave an undeliverable invitation dangling in pending.
		slog.Warn("Invite delivery failed", "error", err, "appointmentID", appt.ID, "participantID", participantID)
		if cancelErr := h.deps.Store.UpdateAppointmentStatus(ctx, appt.ID, models.AppointmentCancelled); cancelErr != nil {
			slog.Error("Failed to cancel undelivered invite", "error", cancelErr, "appointmentID", appt.ID)
		}
		h.reply(ctx, userID, "The invitation could not be delivered (the participant has not started the bot).")
		return
	}

	h.reply(ctx, userID, "Invitation sent. Status: pending.")
	slog.Info("Invitation sent", "appointmentID", appt.ID, "organizerID", userID, "participantID", participantID)
}

// DecideAppointment applies a participant's confirm/decline decision and
// notifies the organizer. The returned text answers the participant's action.
func (h *Handler) DecideAppointment(ctx context.Context, deciderID, appointmentID int64, accept bool) string {
	appt, err := h.deps.Store.GetAppointment(ctx, appointmentID)
	if err != nil {
		slog.Error("Appointment lookup failed", "error", err, "appointmentID", appointmentID)
		return msgStorageError
	}
	if appt == nil {
		return "Appointment not found."
	}
	if deciderID != appt.ParticipantID {
		return "You are not the participant of this appointment."
	}
	if appt.Status != models.AppointmentPending {
		return fmt.Sprintf("Current status: %s.", appt.Status)
	}

	status := models.AppointmentDeclined
	result := "Meeting declined."
	note := fmt.Sprintf("Participant %d declined meeting #%d.", appt.ParticipantID, appt.ID)
	if accept {
		status = models.AppointmentConfirmed
		result = "Meeting confirmed."
		note = fmt.Sprintf("Participant %d confirmed meeting #%d on %s %s.",
			appt.ParticipantID, appt.ID, appt.Date, appt.Time)
	}

	if err := h.deps.Store.UpdateAppointmentStatus(ctx, appointmentID, status); err != nil {
		slog.Error("Appointment decision failed", "error", err, "appointmentID", appointmentID)
		return msgStorageError
	}
	slog.Info("Appointment decided", "appointmentID", appointmentID, "status", status)

	if err := h.deps.Messenger.SendText(ctx, appt.OrganizerID, note); err != nil {
		slog.Warn("Organizer notification failed", "error", err, "organizerID", appt.OrganizerID)
	}
	return result
}
