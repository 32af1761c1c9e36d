// Package cache keeps schedule reads and waiting-list claims in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookcal/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "bookcal:"

// ScheduleSource is the authoritative store behind the cache.
type ScheduleSource interface {
	GetStaff(ctx context.Context, id int64) (*models.Staff, error)
	ListOverrides(ctx context.Context, date time.Time) ([]models.ScheduleOverride, error)
	ListOverridesBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleOverride, error)
}

// Schedules is a read-through cache of staff templates and per-date overrides.
// With a nil Redis client every call goes straight to the source.
type Schedules struct {
	source ScheduleSource
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSchedules wraps source with an optional Redis cache.
func NewSchedules(source ScheduleSource, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *Schedules {
	return &Schedules{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "schedule_cache").Logger(),
	}
}

func staffKey(id int64) string {
	return fmt.Sprintf("%sstaff:%d", keyPrefix, id)
}

func overridesKey(date time.Time) string {
	return keyPrefix + "overrides:" + models.DateKey(date)
}

// GetStaff returns the staff member, from cache when possible.
func (s *Schedules) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	var staff models.Staff
	if s.readCache(ctx, staffKey(id), &staff) {
		return &staff, nil
	}
	fresh, err := s.source.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, staffKey(id), fresh)
	return fresh, nil
}

// ListOverrides returns the overrides dated date, from cache when possible.
func (s *Schedules) ListOverrides(ctx context.Context, date time.Time) ([]models.ScheduleOverride, error) {
	var overrides []models.ScheduleOverride
	if s.readCache(ctx, overridesKey(date), &overrides) {
		return overrides, nil
	}
	fresh, err := s.source.ListOverrides(ctx, date)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = []models.ScheduleOverride{}
	}
	s.writeCache(ctx, overridesKey(date), fresh)
	return fresh, nil
}

// ListOverridesBetween is not cached; ranges are served by the source.
func (s *Schedules) ListOverridesBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleOverride, error) {
	return s.source.ListOverridesBetween(ctx, from, to)
}

// InvalidateStaff drops the cached template of staff id.
func (s *Schedules) InvalidateStaff(ctx context.Context, id int64) {
	s.del(ctx, staffKey(id))
}

// InvalidateOverrides drops the cached overrides of date.
func (s *Schedules) InvalidateOverrides(ctx context.Context, date time.Time) {
	s.del(ctx, overridesKey(date))
}

func (s *Schedules) del(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}

func (s *Schedules) readCache(ctx context.Context, key string, out any) bool {
	if s.redis == nil || s.ttl <= 0 {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (s *Schedules) writeCache(ctx context.Context, key string, val any) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.ttl).Err()
}
