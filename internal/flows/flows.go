// Package flows implements the multi-step conversational dialogs of the
// calendar bot: event creation, editing, deletion, meeting invitations,
// publishing, and browsing another user's public events.
//
// Each flow is a strict linear state machine over the fsm.StateStore. The
// only loop is "invalid input re-asks the same step". A case-insensitive
// cancellation keyword terminates any flow at any step, checked before all
// step-specific validation.
package flows

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calbot/calbot/internal/fsm"
	"github.com/calbot/calbot/internal/models"
	"github.com/calbot/calbot/internal/scheduling"
	"github.com/calbot/calbot/internal/stats"
	"github.com/calbot/calbot/internal/store"
)

// CancelKeyword terminates any active dialog, case-insensitively.
const CancelKeyword = "cancel"

// SkipKeyword means "no extra details" on the invite details step.
const SkipKeyword = "skip"

// Messenger delivers outbound messages to users. Delivery failure is a
// normal, handled outcome: the recipient may never have started a chat with
// the bot.
type Messenger interface {
	// SendText sends a plain text message to the user.
	SendText(ctx context.Context, userID int64, text string) error

	// SendInvite sends an invitation message carrying confirm/decline
	// actions bound to the appointment id.
	SendInvite(ctx context.Context, participantID int64, text string, appointmentID int64) error
}

// Dependencies holds the collaborators injected into the dialog handler.
type Dependencies struct {
	States    fsm.StateStore
	Store     store.Store
	Checker   *scheduling.Checker
	Messenger Messenger
	Stats     *stats.Tracker
}

// Handler owns all dialog flows and the free-text router.
type Handler struct {
	deps Dependencies
}

// NewHandler creates a dialog handler with the given dependencies.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// Common user-facing replies.
const (
	msgCancelled         = "Operation cancelled."
	msgUnknownInput      = "Unrecognized input. Use /help to see the available commands."
	msgRegisterFirst     = "Please register first: /register"
	msgRegistrationError = "Could not check your registration, please try again later."
	msgStorageError      = "Something went wrong, please try again later."
	msgDesyncedState     = "The dialog state was lost. Please start over."
	msgIDMustBeNumber    = "The ID must be a number. Enter the ID:"
)

// reply sends a message to the user, logging (not propagating) send errors.
// A reply that cannot be delivered must not derail the dialog itself.
func (h *Handler) reply(ctx context.Context, userID int64, text string) {
	if err := h.deps.Messenger.SendText(ctx, userID, text); err != nil {
		slog.Error("Reply delivery failed", "error", err, "userID", userID)
	}
}

// isCancel reports whether the raw input is the cancellation keyword.
func isCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), CancelKeyword)
}

// cancel terminates the active dialog and acknowledges it.
func (h *Handler) cancel(ctx context.Context, userID int64) {
	h.deps.States.ClearState(userID)
	h.reply(ctx, userID, msgCancelled)
}

// Cancel handles the /cancel command: clears any active dialog.
func (h *Handler) Cancel(ctx context.Context, userID int64) {
	slog.Debug("Cancel command", "userID", userID)
	h.cancel(ctx, userID)
}

// ensureRegistered verifies the user has registered, prompting /register
// otherwise. It returns true when the dialog may proceed.
func (h *Handler) ensureRegistered(ctx context.Context, userID int64) bool {
	exists, err := h.deps.Store.UserExists(ctx, userID)
	if err != nil {
		slog.Error("Registration check failed", "error", err, "userID", userID)
		h.reply(ctx, userID, msgRegistrationError)
		return false
	}
	if !exists {
		h.reply(ctx, userID, msgRegisterFirst)
		return false
	}
	return true
}

// Register handles the /register command: upserts the user and counts first
// registrations in the daily statistics. Re-registering is harmless.
func (h *Handler) Register(ctx context.Context, userID int64, username, firstName string) {
	created, err := h.deps.Store.UpsertUser(ctx, models.User{
		ID: userID, Username: username, FirstName: firstName,
	})
	if err != nil {
		slog.Error("Registration failed", "error", err, "userID", userID)
		h.reply(ctx, userID, "Registration failed, please try again later.")
		return
	}
	h.reply(ctx, userID, "Registration complete. You can now create events.")
	if created {
		h.deps.Stats.UserRegistered(ctx)
	}
	slog.Info("User registered", "userID", userID, "new", created)
}

// parseID parses a decimal event or user id. The bool is false for
// non-numeric input.
func parseID(text string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
