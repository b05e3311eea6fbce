package flows

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calbot/calbot/internal/models"
)

// StartEdit handles /edit_event. When args already carries an id and new
// text ("15 New description") the update runs immediately without touching
// the state store; otherwise the stepwise dialog begins.
func (h *Handler) StartEdit(ctx context.Context, userID int64, args string) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}

	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) == 2 && parts[0] != "" {
		eventID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			h.reply(ctx, userID, "The ID must be a number.")
			return
		}
		h.applyEdit(ctx, userID, eventID, strings.TrimSpace(parts[1]))
		return
	}

	h.deps.States.SetState(userID, models.FlowEdit, models.StepEditWaitID, nil)
	h.reply(ctx, userID, "Enter the ID of the event to edit:")
}

// editStep advances the EDIT dialog: WAIT_ID -> WAIT_NEW_DETAILS -> persist.
func (h *Handler) editStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}

	switch state.Step {
	case models.StepEditWaitID:
		eventID, ok := parseID(msg)
		if !ok {
			h.reply(ctx, userID, msgIDMustBeNumber)
			return
		}
		// Fail fast on unknown or foreign events instead of at persist time.
		ev, err := h.deps.Store.GetEvent(ctx, userID, eventID)
		if err != nil {
			slog.Error("Event ownership check failed", "error", err, "userID", userID, "eventID", eventID)
			h.deps.States.ClearState(userID)
			h.reply(ctx, userID, msgStorageError)
			return
		}
		if ev == nil {
			h.reply(ctx, userID, "Event not found among your events. Enter the ID:")
			return
		}
		data := state.Data
		data[models.DataKeyEventID] = strconv.FormatInt(eventID, 10)
		h.deps.States.SetState(userID, models.FlowEdit, models.StepEditWaitNewDetails, data)
		h.reply(ctx, userID, "Enter the new description:")

	case models.StepEditWaitNewDetails:
		defer h.deps.States.ClearState(userID)

		eventID, err := strconv.ParseInt(state.Data[models.DataKeyEventID], 10, 64)
		if err != nil {
			h.desync(ctx, userID, state)
			return
		}
		h.applyEdit(ctx, userID, eventID, msg)

	default:
		h.desync(ctx, userID, state)
	}
}

// applyEdit performs the details update shared by the inline shortcut and
// the dialog's terminal step.
func (h *Handler) applyEdit(ctx context.Context, userID, eventID int64, newDetails string) {
	updated, err := h.deps.Store.UpdateEventDetails(ctx, userID, eventID, newDetails)
	if err != nil {
		slog.Error("Event update failed", "error", err, "userID", userID, "eventID", eventID)
		h.reply(ctx, userID, "Could not update the event.")
		return
	}
	if !updated {
		h.reply(ctx, userID, "Event not found.")
		return
	}
	h.reply(ctx, userID, "Updated.")
	h.deps.Stats.EventEdited(ctx)
	slog.Info("Event edited", "userID", userID, "eventID", eventID)
}
