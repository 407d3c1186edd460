package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier sends ops alerts for calls that exhausted their retries.
// Delivery is best-effort; a failed send is logged and dropped.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(cfg config.NotifyConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("telegram notifier requires token and chat id")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	nlog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: cfg.TelegramChatID, log: &nlog}, nil
}

func (n *TelegramNotifier) NotifyFailure(ctx context.Context, callID, errMsg string, attempts int) error {
	text := fmt.Sprintf(
		"⚠️ Call processing failed permanently\n\nCall ID: %s\nAttempts: %d\nLast error: %s",
		callID, attempts, errMsg,
	)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("call_id", callID).Msg("failed to send failure alert")
		return err
	}
	return nil
}
