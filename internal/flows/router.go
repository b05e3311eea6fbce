package flows

import (
	"context"
	"log/slog"

	"github.com/calbot/calbot/internal/models"
)

// HandleText routes a free-text message to the active flow's step handler.
// With no active flow the user gets pointed at the command list.
func (h *Handler) HandleText(ctx context.Context, userID int64, text string) {
	state := h.deps.States.GetState(userID)
	slog.Debug("Routing text", "userID", userID, "flow", state.Flow, "step", state.Step)

	switch state.Flow {
	case models.FlowCreate:
		h.createStep(ctx, userID, text, state)
	case models.FlowEdit:
		h.editStep(ctx, userID, text, state)
	case models.FlowDelete:
		h.deleteStep(ctx, userID, text, state)
	case models.FlowInvite:
		h.inviteStep(ctx, userID, text, state)
	case models.FlowShare:
		h.shareStep(ctx, userID, text, state)
	case models.FlowPublicOf:
		h.publicOfStep(ctx, userID, text, state)
	case models.FlowNone:
		h.reply(ctx, userID, msgUnknownInput)
	default:
		// A flow tag outside the known set means the store was corrupted.
		slog.Error("Unknown flow in state store", "userID", userID, "flow", state.Flow)
		h.deps.States.ClearState(userID)
		h.reply(ctx, userID, msgDesyncedState)
	}
}

// desync handles a step value outside the flow's known step set. This should
// not occur under correct store usage; the dialog cannot continue.
func (h *Handler) desync(ctx context.Context, userID int64, state models.ConversationState) {
	slog.Error("Desynchronized dialog state", "userID", userID, "flow", state.Flow, "step", state.Step)
	h.deps.States.ClearState(userID)
	h.reply(ctx, userID, msgDesyncedState)
}
