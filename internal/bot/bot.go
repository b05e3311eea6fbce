package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/calbot/calbot/internal/api"
	"github.com/calbot/calbot/internal/flows"
)

const helpText = `Available commands:
/register - register with the bot
/create_event - create a new event step by step
/display_events - list your events
/read_event <id> - show one event in full
/edit_event [id new details] - change an event's details
/delete_event [id] - delete an event
/invite - invite another user to a meeting
/share_event - make an event public or private
/public_events - browse another user's public events
/export - get download links for your events
/cancel - abort the current operation

Type "cancel" at any prompt to abort.`

// Opts holds configuration options for the bot.
type Opts struct {
	// ExportBaseURL prefixes the export links handed out by /export,
	// e.g. "https://calbot.example.com".
	ExportBaseURL string
}

// Option defines a functional option for configuring the bot.
type Option func(*Opts)

// WithExportBaseURL sets the public base URL for export links.
func WithExportBaseURL(u string) Option {
	return func(o *Opts) { o.ExportBaseURL = strings.TrimRight(u, "/") }
}

// Bot runs the Telegram update loop and routes updates into the flows.
type Bot struct {
	api           *tgbotapi.BotAPI
	handler       *flows.Handler
	tokens        *api.TokenIssuer
	exportBaseURL string
}

// New creates a Bot around an authorized Telegram client.
func New(tg *tgbotapi.BotAPI, handler *flows.Handler, tokens *api.TokenIssuer, opts ...Option) *Bot {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.ExportBaseURL == "" {
		o.ExportBaseURL = "http://localhost:8080"
	}
	return &Bot{
		api:           tg,
		handler:       handler,
		tokens:        tokens,
		exportBaseURL: o.ExportBaseURL,
	}
}

// Run polls Telegram for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	slog.Info("Bot.Run: update loop started", "bot", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("Bot.Run: update loop stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID
	slog.Debug("Bot.handleMessage: processing message", "user_id", userID, "is_command", msg.IsCommand())

	if !msg.IsCommand() {
		b.handler.HandleText(ctx, userID, msg.Text)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		b.handler.Register(ctx, userID, msg.From.UserName, msg.From.FirstName)
		b.send(userID, helpText)
	case "help":
		b.send(userID, helpText)
	case "register":
		b.handler.Register(ctx, userID, msg.From.UserName, msg.From.FirstName)
	case "create_event":
		b.handler.StartCreate(ctx, userID)
	case "display_events":
		b.handler.DisplayEvents(ctx, userID)
	case "read_event":
		b.handler.ReadEvent(ctx, userID, args)
	case "edit_event":
		b.handler.StartEdit(ctx, userID, args)
	case "delete_event":
		b.handler.StartDelete(ctx, userID, args)
	case "invite":
		b.handler.StartInvite(ctx, userID)
	case "share_event":
		b.handler.StartShare(ctx, userID)
	case "public_events":
		b.handler.StartPublicOf(ctx, userID)
	case "export":
		b.handleExport(userID)
	case "cancel":
		b.handler.Cancel(ctx, userID)
	default:
		b.send(userID, "Unknown command. Use /help to see the available commands.")
	}
}

// handleExport mints a signed token and replies with download links.
func (b *Bot) handleExport(userID int64) {
	token, err := b.tokens.Issue(userID)
	if err != nil {
		slog.Error("Bot.handleExport: failed to issue export token", "error", err, "user_id", userID)
		b.send(userID, "Could not prepare the export links. Try again later.")
		return
	}
	text := fmt.Sprintf("Download your events (links expire soon):\nJSON: %s/export/json?token=%s\nCSV: %s/export/csv?token=%s",
		b.exportBaseURL, token, b.exportBaseURL, token)
	b.send(userID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	data := cq.Data
	slog.Debug("Bot.handleCallback: processing callback", "user_id", userID, "data", data)

	appointmentID, accept, ok := parseDecision(data)
	if !ok {
		slog.Warn("Bot.handleCallback: unrecognized callback data", "data", data)
		b.answerCallback(cq.ID, "")
		return
	}

	result := b.handler.DecideAppointment(ctx, userID, appointmentID, accept)
	b.answerCallback(cq.ID, result)
	b.send(userID, result)
}

// parseDecision extracts the appointment id and verdict from decision
// callback data such as "appt:ok:17".
func parseDecision(data string) (appointmentID int64, accept, ok bool) {
	var idStr string
	switch {
	case strings.HasPrefix(data, callbackAcceptPrefix):
		idStr, accept = strings.TrimPrefix(data, callbackAcceptPrefix), true
	case strings.HasPrefix(data, callbackDeclinePrefix):
		idStr, accept = strings.TrimPrefix(data, callbackDeclinePrefix), false
	default:
		return 0, false, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, false
	}
	return id, accept, true
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		slog.Warn("Bot.answerCallback: failed to answer callback query", "error", err)
	}
}

func (b *Bot) send(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Bot.send: failed to send message", "error", err, "user_id", userID)
	}
}
