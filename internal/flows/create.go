package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calbot/calbot/internal/fsm"
	"github.com/calbot/calbot/internal/models"
)

// StartCreate begins the event creation dialog.
func (h *Handler) StartCreate(ctx context.Context, userID int64) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	h.deps.States.SetState(userID, models.FlowCreate, models.StepCreateWaitName, nil)
	h.reply(ctx, userID, "Enter the event name:")
}

// createStep advances the CREATE dialog:
// WAIT_NAME -> WAIT_DATE -> WAIT_TIME -> WAIT_DETAILS -> persist.
func (h *Handler) createStep(ctx context.Context, userID int64, text string, state models.ConversationState) {
	msg := strings.TrimSpace(text)
	if isCancel(msg) {
		h.cancel(ctx, userID)
		return
	}
	data := state.Data

	switch state.Step {
	case models.StepCreateWaitName:
		data[models.DataKeyName] = msg
		h.deps.States.SetState(userID, models.FlowCreate, models.StepCreateWaitDate, data)
		h.reply(ctx, userID, "Enter the date (YYYY-MM-DD):")

	case models.StepCreateWaitDate:
		date, ok := fsm.ParseDate(msg)
		if !ok {
			h.reply(ctx, userID, "Invalid format. Example: 2025-11-03. Try again:")
			return
		}
		data[models.DataKeyDate] = date
		h.deps.States.SetState(userID, models.FlowCreate, models.StepCreateWaitTime, data)
		h.reply(ctx, userID, "Enter the time (HH:MM, for example 14:30):")

	case models.StepCreateWaitTime:
		timeOfDay, ok := fsm.ParseTime(msg)
		if !ok {
			h.reply(ctx, userID, "Invalid format. Example: 09:05. Try again:")
			return
		}
		data[models.DataKeyTime] = timeOfDay
		h.deps.States.SetState(userID, models.FlowCreate, models.StepCreateWaitDetails, data)
		h.reply(ctx, userID, "Enter the event details:")

	case models.StepCreateWaitDetails:
		// Terminal step: state clears in every outcome.
		defer h.deps.States.ClearState(userID)

		id, err := h.deps.Store.CreateEvent(ctx, models.Event{
			OwnerID: userID,
			Name:    data[models.DataKeyName],
			Date:    data[models.DataKeyDate],
			Time:    data[models.DataKeyTime],
			Details: msg,
		})
		if errors.Is(err, models.ErrInvalidDateTime) {
			// Storage re-validates formats; relay the message verbatim.
			h.reply(ctx, userID, err.Error())
			return
		}
		if err != nil {
			slog.Error("Event creation failed", "error", err, "userID", userID)
			h.reply(ctx, userID, "Could not create the event.")
			return
		}
		h.reply(ctx, userID, fmt.Sprintf("Event created. ID: %d", id))
		h.deps.Stats.EventCreated(ctx)
		slog.Info("Event created", "userID", userID, "eventID", id)

	default:
		h.desync(ctx, userID, state)
	}
}
