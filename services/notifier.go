package services

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BrokerNotifier delivers review messages to brokers. Delivery is
// best-effort; a failed notification never fails the review action that
// produced it.
type BrokerNotifier interface {
	NotifyBroker(brokerID, subject, message string) error
}

// LoggingNotifier implements BrokerNotifier using structured logging. The
// default when no delivery channel is configured.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new logging-based notifier
func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{}
}

// NotifyBroker logs the notification
func (n *LoggingNotifier) NotifyBroker(brokerID, subject, message string) error {
	slog.Info("Broker notification",
		"broker_id", brokerID,
		"subject", subject,
		"message", message)
	return nil
}

// TelegramNotifier implements BrokerNotifier by posting to the brokers'
// operations chat on Telegram
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	slog.Info("Telegram notifier authorized", "account", api.Self.UserName)

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
	}, nil
}

// NotifyBroker posts the notification to the operations chat
func (n *TelegramNotifier) NotifyBroker(brokerID, subject, message string) error {
	text := fmt.Sprintf("📋 %s\nBroker: %s\n\n%s", subject, brokerID, message)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
