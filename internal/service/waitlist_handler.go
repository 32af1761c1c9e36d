package service

import (
	"context"
	"fmt"
	"time"

	"bookcal/internal/events"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/waitlist"

	"github.com/rs/zerolog"
)

// freedMatchTimeout bounds one waiting-list match. The match outlives the
// request that freed the interval.
const freedMatchTimeout = 2 * time.Minute

// SlotMatcher runs the waiting-list match for one freed interval.
type SlotMatcher interface {
	OnSlotFreed(ctx context.Context, date time.Time, startTime, endTime string) (waitlist.Result, error)
}

// FreedIntervalHandler returns the event handler that feeds freed intervals
// to the matcher.
func FreedIntervalHandler(m SlotMatcher, logger zerolog.Logger) events.EventHandler {
	logger = logger.With().Str("component", "freed_handler").Logger()
	return func(ctx context.Context, e events.Event) error {
		freed, ok := e.Payload.(events.FreedInterval)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
		}

		if start, err := models.ParseClock(freed.Start); err == nil {
			if end, err := models.ParseClock(freed.End); err == nil && end > start {
				metrics.ObserveFreedInterval(end - start)
			}
		}

		matchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), freedMatchTimeout)
		defer cancel()

		res, err := m.OnSlotFreed(matchCtx, freed.Date, freed.Start, freed.End)
		if err != nil {
			return fmt.Errorf("match freed %s %s-%s: %w", models.DateKey(freed.Date), freed.Start, freed.End, err)
		}
		logger.Debug().
			Str("reason", freed.Reason).
			Str("date", models.DateKey(freed.Date)).
			Int("notified", res.Notified).
			Int("skipped", res.Skipped).
			Msg("freed interval handled")
		return nil
	}
}
