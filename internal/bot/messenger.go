// Package bot drives the Telegram transport: the long-polling update loop,
// command dispatch into the conversation flows, and outbound delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes for the appointment decision buttons.
const (
	callbackAcceptPrefix  = "appt:ok:"
	callbackDeclinePrefix = "appt:no:"
)

// Messenger sends messages to Telegram users. It satisfies the delivery
// interface the conversation flows depend on.
type Messenger struct {
	api *tgbotapi.BotAPI
}

// NewMessenger wraps a Telegram API client for outbound delivery.
func NewMessenger(api *tgbotapi.BotAPI) *Messenger {
	return &Messenger{api: api}
}

// SendText delivers a plain text message to the user's private chat.
func (m *Messenger) SendText(ctx context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", userID, err)
	}
	slog.Debug("Messenger.SendText: message delivered", "user_id", userID)
	return nil
}

// SendInvite delivers an invitation with inline accept/decline buttons tied
// to the appointment id.
func (m *Messenger) SendInvite(ctx context.Context, participantID int64, text string, appointmentID int64) error {
	msg := tgbotapi.NewMessage(participantID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Accept", fmt.Sprintf("%s%d", callbackAcceptPrefix, appointmentID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", fmt.Sprintf("%s%d", callbackDeclinePrefix, appointmentID)),
		),
	)
	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send invite to %d: %w", participantID, err)
	}
	slog.Debug("Messenger.SendInvite: invite delivered", "participant_id", participantID, "appointment_id", appointmentID)
	return nil
}
