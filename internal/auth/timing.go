package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingEqualizer pads authentication failures to a uniform minimum
// duration so that "no such account", "wrong password", and "locked"
// are indistinguishable by response time.
type TimingEqualizer struct {
	floor  time.Duration
	jitter time.Duration
}

// NewTimingEqualizer creates a TimingEqualizer with the given floor and
// random jitter range.
func NewTimingEqualizer(floor, jitter time.Duration) *TimingEqualizer {
	return &TimingEqualizer{floor: floor, jitter: jitter}
}

// randomJitter returns a secure random duration in [0, max). crypto/rand
// keeps the jitter unpredictable to a remote observer.
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(buf) % uint64(max))
}

// PadFrom sleeps until at least floor+jitter has elapsed since start.
// Work already done counts toward the target, so a slow bcrypt compare
// does not stack on top of the pad.
func (te *TimingEqualizer) PadFrom(start time.Time) {
	target := te.floor + randomJitter(te.jitter)
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}
