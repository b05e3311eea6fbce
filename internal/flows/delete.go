package flows

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calbot/calbot/internal/models"
)

// StartDelete handles /delete_event. With an id already in args
// ("/delete_event 15") the deletion runs immediately; otherwise the
// single-step dialog begins.
func (h *Handler) StartDelete(ctx context.Context, userID int64, args string) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}

	if arg := strings.TrimSpace(args); arg != "" {
		eventID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			h.reply(ctx, userID, "The ID must be a number.")
			return
		}
		h.applyDelete(ctx, userID, eventID)
		return
	}

	h.deps.States.SetState(userID, models.FlowDelete, models.StepDeleteWaitID, nil)
	h.reply(ctx, userID, "Enter the ID of the event to delete:")
}

// deleteStep advances the DELETE dialog: its single step asks for the id.
func (h *Handler) deleteStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}

	switch state.Step {
	case models.StepDeleteWaitID:
		eventID, ok := parseID(msg)
		if !ok {
			h.reply(ctx, userID, msgIDMustBeNumber)
			return
		}
		defer h.deps.States.ClearState(userID)
		h.applyDelete(ctx, userID, eventID)

	default:
		h.desync(ctx, userID, state)
	}
}

// applyDelete performs the deletion shared by the inline shortcut and the
// dialog's terminal step.
func (h *Handler) applyDelete(ctx context.Context, userID, eventID int64) {
	deleted, err := h.deps.Store.DeleteEvent(ctx, userID, eventID)
	if err != nil {
		slog.Error("Event deletion failed", "error", err, "userID", userID, "eventID", eventID)
		h.reply(ctx, userID, "Could not delete the event.")
		return
	}
	if !deleted {
		h.reply(ctx, userID, "Event not found.")
		return
	}
	h.reply(ctx, userID, "Deleted.")
	h.deps.Stats.EventDeleted(ctx)
	slog.Info("Event deleted", "userID", userID, "eventID", eventID)
}
