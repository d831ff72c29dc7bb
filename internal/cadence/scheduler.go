// Package cadence decides when the monitor loop performs its periodic side
// activities: session revalidation, filler browsing, and jittered check
// intervals. All randomness flows through an injected Source so the logic
// stays deterministic under test.
package cadence

import (
	"math/rand"
	"time"
)

// Source supplies the randomness the scheduler draws from. *rand.Rand
// satisfies it.
type Source interface {
	Intn(n int) int
	Float64() float64
}

// NewSource returns a time-seeded Source for production use.
func NewSource() Source {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

const (
	// DefaultSessionCheckMin and friends are the stock cadence ranges,
	// used whenever the corresponding Ranges field is zero.
	DefaultSessionCheckMin = 5
	DefaultSessionCheckMax = 10
	DefaultFillerMin       = 8
	DefaultFillerMax       = 12

	// Intervals at or below this threshold are left exactly as
	// configured; longer ones get jitter applied.
	jitterFloor = 20 * time.Second
	jitterSpan  = 10 * time.Second
)

// Ranges overrides the threshold draw ranges. Zero pairs fall back to the
// package defaults.
type Ranges struct {
	SessionCheckMin int
	SessionCheckMax int
	FillerMin       int
	FillerMax       int
}

func (r Ranges) withDefaults() Ranges {
	if r.SessionCheckMin == 0 && r.SessionCheckMax == 0 {
		r.SessionCheckMin = DefaultSessionCheckMin
		r.SessionCheckMax = DefaultSessionCheckMax
	}
	if r.FillerMin == 0 && r.FillerMax == 0 {
		r.FillerMin = DefaultFillerMin
		r.FillerMax = DefaultFillerMax
	}
	return r
}

// Scheduler tracks loop counters and answers cadence questions for the
// monitor. It is not safe for concurrent use; the monitor loop owns it.
type Scheduler struct {
	src    Source
	ranges Ranges

	baseInterval time.Duration

	sessionEvery int
	sessionCount int
	checkCount   int
}

// New returns a scheduler for the given base check interval.
func New(baseInterval time.Duration, ranges Ranges, src Source) *Scheduler {
	s := &Scheduler{src: src, ranges: ranges.withDefaults(), baseInterval: baseInterval}
	s.sessionEvery = s.drawSessionThreshold()
	return s
}

func (s *Scheduler) drawSessionThreshold() int {
	r := s.ranges
	return r.SessionCheckMin + s.src.Intn(r.SessionCheckMax-r.SessionCheckMin+1)
}

// ShouldCheckSession advances the session counter and reports whether a
// periodic session revalidation is due. The threshold is redrawn from
// [5,10] after each trigger, so the counter never exceeds 10.
func (s *Scheduler) ShouldCheckSession() bool {
	s.sessionCount++
	if s.sessionCount < s.sessionEvery {
		return false
	}
	s.sessionCount = 0
	s.sessionEvery = s.drawSessionThreshold()
	return true
}

// ShouldRunFiller advances the check counter and reports whether filler
// browsing should run this tick. The divisor is drawn fresh from [8,12]
// each time, so filler cadence drifts rather than repeating on a fixed
// period.
func (s *Scheduler) ShouldRunFiller() bool {
	s.checkCount++
	r := s.ranges
	divisor := r.FillerMin + s.src.Intn(r.FillerMax-r.FillerMin+1)
	return s.checkCount%divisor == 0
}

// Checks returns how many availability checks have been counted so far.
func (s *Scheduler) Checks() int {
	return s.checkCount
}

// NextInterval returns the wait before the next check. Short intervals
// pass through untouched; anything above 20s gets up to ±10s of jitter so
// the poll rhythm does not look mechanical.
func (s *Scheduler) NextInterval() time.Duration {
	if s.baseInterval <= jitterFloor {
		return s.baseInterval
	}
	jitter := time.Duration(s.src.Intn(int(2*jitterSpan/time.Second)+1))*time.Second - jitterSpan
	return s.baseInterval + jitter
}

// Delay returns a uniform random duration in [min, max], used for
// human-like pauses between page interactions.
func (s *Scheduler) Delay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.src.Float64()*float64(max-min))
}
