package flows

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calbot/calbot/internal/models"
)

// Visibility choices accepted on the SHARE dialog's second step.
const (
	choiceMakePublic  = "make public"
	choiceMakePrivate = "make private"
)

// StartShare begins the publish/unpublish dialog.
func (h *Handler) StartShare(ctx context.Context, userID int64) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	h.deps.States.SetState(userID, models.FlowShare, models.StepShareWaitEventID, nil)
	h.reply(ctx, userID, "Enter the event ID:")
}

// shareStep advances the SHARE dialog:
// WAIT_EVENT_ID -> WAIT_VISIBILITY -> persist.
// Ownership is not pre-checked; the terminal update is owner-scoped.
func (h *Handler) shareStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}

	switch state.Step {
	case models.StepShareWaitEventID:
		eventID, ok := parseID(msg)
		if !ok {
			h.reply(ctx, userID, msgIDMustBeNumber)
			return
		}
		data := state.Data
		data[models.DataKeyEventID] = strconv.FormatInt(eventID, 10)
		h.deps.States.SetState(userID, models.FlowShare, models.StepShareWaitVisibility, data)
		h.reply(ctx, userID, `Reply "make public" or "make private":`)

	case models.StepShareWaitVisibility:
		var public bool
		switch strings.ToLower(msg) {
		case choiceMakePublic:
			public = true
		case choiceMakePrivate:
			public = false
		default:
			h.reply(ctx, userID, `Please answer "make public" or "make private":`)
			return
		}

		defer h.deps.States.ClearState(userID)

		eventID, err := strconv.ParseInt(state.Data[models.DataKeyEventID], 10, 64)
		if err != nil {
			h.desync(ctx, userID, state)
			return
		}
		updated, err := h.deps.Store.SetEventVisibility(ctx, userID, eventID, public)
		if err != nil {
			slog.Error("Visibility update failed", "error", err, "userID", userID, "eventID", eventID)
			h.reply(ctx, userID, "Could not change the event visibility.")
			return
		}
		if !updated {
			h.reply(ctx, userID, "Event not found among your events.")
			return
		}
		if public {
			h.reply(ctx, userID, "The event is now public.")
		} else {
			h.reply(ctx, userID, "The event is now private.")
		}
		slog.Info("Event visibility changed", "userID", userID, "eventID", eventID, "public", public)

	default:
		h.desync(ctx, userID, state)
	}
}
