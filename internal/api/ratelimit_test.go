package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	l := newClientLimiter(1, 1)
	require.NotNil(t, l)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, 100, l.size())

	// One client keeps talking, the rest go quiet.
	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("10.0.0.1"))

	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("10.0.0.200"))
	assert.Equal(t, 2, l.size(), "only the recent and the new client remain")

	// The new client spent its only token.
	assert.False(t, l.allow("10.0.0.200"))
}

func TestClientLimiter_Disabled(t *testing.T) {
	l := newClientLimiter(0, 0)
	assert.Nil(t, l)
	assert.True(t, l.allow("anyone"))
}
