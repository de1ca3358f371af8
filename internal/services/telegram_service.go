package services

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"akimat/internal/config"
	"akimat/internal/logger"
)

// AdminNotifier sends short service notices to the administrators' chat.
type AdminNotifier interface {
	NotifyAdmins(text string) error
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramService struct {
	bot    botSender
	chatID int64
	log    zerolog.Logger
}

// NewTelegramService connects to the Bot API (getMe). With no token or chat id
// the service is disabled and NotifyAdmins is a no-op.
func NewTelegramService(cfg config.TelegramConfig) (*TelegramService, error) {
	s := &TelegramService{chatID: cfg.AdminChatID, log: logger.Component("notify")}
	if strings.TrimSpace(cfg.BotToken) == "" || cfg.AdminChatID == 0 {
		return s, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return s, fmt.Errorf("telegram bot init: %w", err)
	}
	s.bot = bot
	s.log.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
	return s, nil
}

func (t *TelegramService) Enabled() bool {
	return t != nil && t.bot != nil && t.chatID != 0
}

func (t *TelegramService) NotifyAdmins(text string) error {
	if !t.Enabled() {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Error().Err(err).Int64("chat_id", t.chatID).Msg("telegram send failed")
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}
