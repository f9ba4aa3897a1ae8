package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingEqualizer_PadFrom(t *testing.T) {
	te := NewTimingEqualizer(80*time.Millisecond, 40*time.Millisecond)
	start := time.Now()

	te.PadFrom(start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestTimingEqualizer_PadFromCountsElapsedWork(t *testing.T) {
	te := NewTimingEqualizer(100*time.Millisecond, 0)
	start := time.Now()

	// Simulate work already done before the pad
	time.Sleep(50 * time.Millisecond)
	te.PadFrom(start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 140*time.Millisecond)
}

func TestTimingEqualizer_NoPadWhenAlreadyExceeded(t *testing.T) {
	te := NewTimingEqualizer(30*time.Millisecond, 0)
	start := time.Now()

	time.Sleep(60 * time.Millisecond)
	te.PadFrom(start)

	elapsed := time.Since(start)
	assert.Less(t, elapsed, 90*time.Millisecond)
}
