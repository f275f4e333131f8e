package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(1500 * time.Millisecond)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow(1), "first call passes")
	assert.False(t, l.Allow(1), "immediate retry is limited")
	assert.True(t, l.Allow(2), "other users unaffected")

	now = now.Add(time.Second)
	assert.False(t, l.Allow(1), "still inside cooldown")

	now = now.Add(time.Second)
	assert.True(t, l.Allow(1), "cooldown elapsed")
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0)
	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
}
