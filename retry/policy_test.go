package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffDoubles(t *testing.T) {
	p := &ExponentialBackoff{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		MaxAttempts: 6,
	}

	assert.Equal(t, 100*time.Millisecond, p.CalculateDelay(0))
	assert.Equal(t, 200*time.Millisecond, p.CalculateDelay(1))
	assert.Equal(t, 400*time.Millisecond, p.CalculateDelay(2))
	assert.Equal(t, 800*time.Millisecond, p.CalculateDelay(3))
	assert.Equal(t, 1600*time.Millisecond, p.CalculateDelay(4))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	p := &ExponentialBackoff{
		BaseDelay:   time.Second,
		MaxDelay:    3 * time.Second,
		MaxAttempts: 10,
	}

	assert.Equal(t, 3*time.Second, p.CalculateDelay(5))
	assert.Equal(t, 3*time.Second, p.CalculateDelay(9))
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	p := &ExponentialBackoff{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Jitter:      0.2,
		MaxAttempts: 1,
	}

	for i := 0; i < 100; i++ {
		d := p.CalculateDelay(0)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestExponentialBackoffExhausts(t *testing.T) {
	p := &ExponentialBackoff{BaseDelay: time.Millisecond, MaxAttempts: 2}

	_, ok := p.NextDelay(0)
	assert.True(t, ok)
	_, ok = p.NextDelay(1)
	assert.True(t, ok)
	_, ok = p.NextDelay(2)
	assert.False(t, ok)
}

func TestFixedInterval(t *testing.T) {
	p := &FixedInterval{Interval: 50 * time.Millisecond, MaxAttempts: 3}

	for i := 0; i < 3; i++ {
		d, ok := p.NextDelay(i)
		require.True(t, ok)
		assert.Equal(t, 50*time.Millisecond, d)
	}
	_, ok := p.NextDelay(3)
	assert.False(t, ok)
}

func TestBackoffIterator(t *testing.T) {
	b := NewBackoff(&FixedInterval{Interval: time.Millisecond, MaxAttempts: 2})

	_, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, 1, b.Attempt())

	_, ok = b.Next()
	require.True(t, ok)
	_, ok = b.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, b.Attempt())

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	_, ok = b.Next()
	assert.True(t, ok)
}
