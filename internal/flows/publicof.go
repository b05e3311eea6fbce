package flows

import (
	"context"
	"log/slog"
	"strings"

	"github.com/calbot/calbot/internal/models"
)

// StartPublicOf begins the "browse another user's public events" dialog.
func (h *Handler) StartPublicOf(ctx context.Context, userID int64) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	h.deps.States.SetState(userID, models.FlowPublicOf, models.StepPublicOfWaitUserID, nil)
	h.reply(ctx, userID, "Enter the TG ID of the user whose public events you want to see:")
}

// publicOfStep runs the single step of the PUBLIC_OF dialog: it queries the
// target user's public events and reports the list or its absence.
func (h *Handler) publicOfStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}

	switch state.Step {
	case models.StepPublicOfWaitUserID:
		targetID, ok := parseID(msg)
		if !ok {
			h.reply(ctx, userID, "The TG ID must be a number. Enter the ID:")
			return
		}

		defer h.deps.States.ClearState(userID)

		events, err := h.deps.Store.ListPublicEvents(ctx, targetID)
		if err != nil {
			slog.Error("Public events query failed", "error", err, "targetID", targetID)
			h.reply(ctx, userID, msgStorageError)
			return
		}
		if len(events) == 0 {
			h.reply(ctx, userID, "This user has no public events.")
			return
		}

		var b strings.Builder
		b.WriteString("Public events:\n")
		for _, ev := range events {
			b.WriteString(ev.String())
			b.WriteByte('\n')
		}
		h.reply(ctx, userID, strings.TrimRight(b.String(), "\n"))

	default:
		h.desync(ctx, userID, state)
	}
}
