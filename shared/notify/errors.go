package notify

import (
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNoChat is returned when a contact has no Telegram chat to deliver to.
var ErrNoChat = errors.New("contact has no chat id")

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
	// MaxRetryAfter caps how long a single 429 may stall a send.
	MaxRetryAfter time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
		},
		MaxRetryAfter: 30 * time.Second,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsTelegramError checks if the error is a TelegramError.
func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

// fromAPI converts the bot library's error into a TelegramError. Other
// errors (network, encoding) are returned unchanged.
func fromAPI(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &TelegramError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
		}
	}
	return err
}

// permanent reports whether retrying err cannot help.
func permanent(err error) bool {
	if errors.Is(err, ErrNoChat) {
		return true
	}
	if tgErr, ok := IsTelegramError(err); ok {
		switch tgErr.Code {
		case 400, 403:
			return true
		}
	}
	return false
}
