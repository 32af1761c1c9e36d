// Package notify delivers waiting-list offers to clients.
package notify

import (
	"context"
	"fmt"
	"time"

	"bookcal/internal/models"
	"bookcal/internal/waitlist"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender is the part of the bot API used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramConfig configures pacing and retries.
type TelegramConfig struct {
	RatePerSecond float64
	Burst         int
	Retry         RetryConfig
}

// DefaultTelegramConfig stays under Telegram's global limit of 30 messages per second.
func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		RatePerSecond: 25,
		Burst:         5,
		Retry:         DefaultRetryConfig(),
	}
}

// TelegramNotifier sends offers as chat messages.
type TelegramNotifier struct {
	sender  Sender
	limiter *rate.Limiter
	retry   RetryConfig
	metrics *Metrics
	logger  zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ waitlist.Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier. metrics may be nil.
func NewTelegramNotifier(sender Sender, cfg TelegramConfig, metrics *Metrics, logger zerolog.Logger) *TelegramNotifier {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &TelegramNotifier{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		retry:   cfg.Retry,
		metrics: metrics,
		logger:  logger.With().Str("component", "telegram_notifier").Logger(),
		sleep:   sleepCtx,
	}
}

// NotifyWaitingEntry sends the offer to contact's chat, retrying transient failures.
func (n *TelegramNotifier) NotifyWaitingEntry(ctx context.Context, contact models.Contact, offer waitlist.Offer) error {
	if contact.ChatID == 0 {
		n.metrics.incSent("no_chat")
		return fmt.Errorf("notify %q: %w", contact.Name, ErrNoChat)
	}

	started := time.Now()
	defer func() { n.metrics.observe(time.Since(started).Seconds()) }()

	msg := tgbotapi.NewMessage(contact.ChatID, FormatOffer(contact, offer))

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		_, err := n.sender.Send(msg)
		if err == nil {
			n.metrics.incSent("sent")
			n.logger.Debug().Int64("chat_id", contact.ChatID).Str("time", offer.Time).Msg("offer sent")
			return nil
		}

		lastErr = fromAPI(err)
		if permanent(lastErr) {
			n.metrics.incSent("rejected")
			n.logger.Warn().Err(lastErr).Int64("chat_id", contact.ChatID).Msg("offer rejected by telegram")
			return lastErr
		}
		if attempt == n.retry.MaxRetries {
			break
		}

		wait := n.retry.delay(attempt)
		if tgErr, ok := IsTelegramError(lastErr); ok && tgErr.Code == 429 {
			n.metrics.incRateLimitWaits()
			if tgErr.RetryAfter > 0 {
				wait = time.Duration(tgErr.RetryAfter) * time.Second
			}
			if n.retry.MaxRetryAfter > 0 && wait > n.retry.MaxRetryAfter {
				n.metrics.incSent("rate_limited")
				return lastErr
			}
		}

		n.metrics.incRetries()
		n.logger.Info().
			Err(lastErr).
			Int("attempt", attempt+1).
			Dur("delay", wait).
			Int64("chat_id", contact.ChatID).
			Msg("retrying offer send")

		if err := n.sleep(ctx, wait); err != nil {
			return err
		}
	}

	n.metrics.incSent("failed")
	n.logger.Error().Err(lastErr).Int64("chat_id", contact.ChatID).Msg("max retries exceeded for offer")
	return lastErr
}

// FormatOffer renders the message text.
func FormatOffer(contact models.Contact, offer waitlist.Offer) string {
	text := fmt.Sprintf("A slot opened up on %s at %s.", offer.Date.Format("02.01.2006"), offer.Time)
	if offer.ServiceName != "" {
		text = fmt.Sprintf("A slot for %s opened up on %s at %s.", offer.ServiceName, offer.Date.Format("02.01.2006"), offer.Time)
	}
	if contact.Name != "" {
		text = contact.Name + ", " + lowerFirst(text)
	}
	return text + " Reply to book it."
}

func lowerFirst(s string) string {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return s
	}
	return string(s[0]+'a'-'A') + s[1:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
