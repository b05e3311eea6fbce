package flows

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// DisplayEvents handles /display_events: lists the user's own events
// ordered by date and time.
func (h *Handler) DisplayEvents(ctx context.Context, userID int64) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	events, err := h.deps.Store.ListEvents(ctx, userID)
	if err != nil {
		slog.Error("Event listing failed", "error", err, "userID", userID)
		h.reply(ctx, userID, "Could not fetch your events.")
		return
	}
	if len(events) == 0 {
		h.reply(ctx, userID, "No events yet.")
		return
	}
	var b strings.Builder
	b.WriteString("Your events:\n")
	for _, ev := range events {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}
	h.reply(ctx, userID, strings.TrimRight(b.String(), "\n"))
}

// ReadEvent handles /read_event <id>: shows a single owned event.
func (h *Handler) ReadEvent(ctx context.Context, userID int64, args string) {
	if !h.ensureRegistered(ctx, userID) {
		return
	}
	arg := strings.TrimSpace(args)
	if arg == "" {
		h.reply(ctx, userID, "Usage: /read_event <id>")
		return
	}
	eventID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		h.reply(ctx, userID, "The ID must be a number.")
		return
	}

	ev, err := h.deps.Store.GetEvent(ctx, userID, eventID)
	if err != nil {
		slog.Error("Event read failed", "error", err, "userID", userID, "eventID", eventID)
		h.reply(ctx, userID, "Could not read the event.")
		return
	}
	if ev == nil {
		h.reply(ctx, userID, "Event not found.")
		return
	}
	h.reply(ctx, userID, fmt.Sprintf(
		"Event (ID: %d): %s\nDate: %s\nTime: %s\nDetails: %s",
		ev.ID, ev.Name, ev.Date, ev.Time, ev.Details))
}
