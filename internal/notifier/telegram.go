package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"BandSentinel/internal/logger"
	"BandSentinel/internal/model"
)

// Report is one instrument's evaluation under one profile.
type Report struct {
	Profile string
	Series  *model.IndicatorSeries
	Signals []model.Signal
}

// Notifier delivers signal reports.
type Notifier interface {
	NotifySignals(ctx context.Context, r Report) error
	Send(ctx context.Context, text string) error
}

// botAPI is the part of *tgbotapi.BotAPI the notifier uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	bot        botAPI
	chatID     int64
	maxRetries uint64
	log        zerolog.Logger
}

// NewTelegramNotifier authorizes the bot, with optional proxy support.
func NewTelegramNotifier(botToken string, chatID int64, proxyURL string) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{Timeout: 70 * time.Second, Transport: transport}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	n := newTelegramNotifier(bot, chatID)
	n.log.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	return n, nil
}

func newTelegramNotifier(bot botAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		bot:        bot,
		chatID:     chatID,
		maxRetries: 3,
		log:        logger.Component("notifier"),
	}
}

func (t *TelegramNotifier) sendTo(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	attempt := 0
	operation := func() error {
		attempt++
		_, err := t.bot.Send(msg)
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("telegram send failed")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	if err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, t.maxRetries), ctx), notify); err != nil {
		return fmt.Errorf("send message after %d attempts: %w", attempt, err)
	}
	return nil
}

// Send sends a message to the configured chat, retrying with backoff.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.sendTo(ctx, t.chatID, text)
}

// NotifySignals sends the formatted report.
func (t *TelegramNotifier) NotifySignals(ctx context.Context, r Report) error {
	return t.Send(ctx, FormatSignalReport(r))
}
