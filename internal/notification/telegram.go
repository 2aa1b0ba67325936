package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the part of *tgbotapi.BotAPI used to post alerts.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts full-bin alerts to a single chat.
type TelegramNotifier struct {
	sender MessageSender
	chatID string
	logger *slog.Logger
}

// NewTelegramNotifier creates a notifier. A nil sender or empty chat id
// leaves it unconfigured: alerts are logged and skipped.
func NewTelegramNotifier(sender MessageSender, chatID string, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NewTelegramBot connects to the Bot API with the given token. An empty
// endpoint uses api.telegram.org.
func NewTelegramBot(botToken, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return bot, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, alert Alert) error {
	if t.sender == nil || t.chatID == "" {
		t.logger.WarnContext(ctx, "telegram not configured, skipping alert", "device_id", alert.DeviceID)
		return nil
	}

	msg := t.newMessage(FullAlertMessage(alert))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send for %s: %w", alert.DeviceID, err)
	}
	t.logger.InfoContext(ctx, "telegram alert sent", "device_id", alert.DeviceID, "fill_percentage", alert.FillPercentage)
	return nil
}

// newMessage addresses numeric chat ids directly and anything else (@channel) by username.
func (t *TelegramNotifier) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(t.chatID, text)
}
