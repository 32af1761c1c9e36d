package notify

import (
	"context"

	"bookcal/internal/models"
	"bookcal/internal/waitlist"

	"github.com/rs/zerolog"
)

// LogNotifier writes offers to the log. Used when no bot token is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ waitlist.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) NotifyWaitingEntry(_ context.Context, contact models.Contact, offer waitlist.Offer) error {
	n.logger.Info().
		Str("name", contact.Name).
		Str("phone", contact.Phone).
		Str("date", models.DateKey(offer.Date)).
		Str("time", offer.Time).
		Str("service", offer.ServiceName).
		Msg(FormatOffer(contact, offer))
	return nil
}
