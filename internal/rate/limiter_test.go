package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := m.Allow("ip:1", 3, time.Minute)
		assert.True(t, ok, "hit %d", i)
	}
	ok, retry := m.Allow("ip:1", 3, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	// Other keys have their own budget.
	ok, _ = m.Allow("ip:2", 3, time.Minute)
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Second)
	ok, _ = m.Allow("ip:1", 3, time.Minute)
	assert.True(t, ok)
}

func TestNonPositiveLimitDisables(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 10; i++ {
		ok, _ := m.Allow("k", 0, time.Minute)
		assert.True(t, ok)
	}
	assert.Zero(t, m.Len())
}

func TestSweepDropsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	m.Allow("a", 1, time.Second)
	m.Allow("b", 1, time.Second)
	assert.Equal(t, 2, m.Len())

	now = now.Add(2 * time.Minute)
	m.Allow("c", 1, time.Second)
	assert.Equal(t, 1, m.Len())
}
