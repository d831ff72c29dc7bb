package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptSource replays a fixed sequence of Intn results and a constant
// Float64 value.
type scriptSource struct {
	ints  []int
	next  int
	float float64
}

func (s *scriptSource) Intn(n int) int {
	if s.next >= len(s.ints) {
		return 0
	}
	v := s.ints[s.next]
	s.next++
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *scriptSource) Float64() float64 { return s.float }

func TestShouldCheckSession(t *testing.T) {
	t.Run("fires at drawn threshold and resets", func(t *testing.T) {
		// First draw lands on 5, redraw after firing lands on 7.
		src := &scriptSource{ints: []int{0, 2}}
		s := New(30*time.Second, Ranges{}, src)

		for i := 0; i < 4; i++ {
			assert.False(t, s.ShouldCheckSession(), "tick %d", i+1)
		}
		assert.True(t, s.ShouldCheckSession())

		for i := 0; i < 6; i++ {
			assert.False(t, s.ShouldCheckSession(), "tick %d after reset", i+1)
		}
		assert.True(t, s.ShouldCheckSession())
	})

	t.Run("counter never exceeds max threshold", func(t *testing.T) {
		// Always draw the widest threshold.
		src := &scriptSource{ints: []int{5, 5, 5, 5, 5}}
		s := New(30*time.Second, Ranges{}, src)

		fired := 0
		for i := 0; i < 30; i++ {
			if s.ShouldCheckSession() {
				fired++
				assert.Equal(t, 0, s.sessionCount)
			}
			assert.LessOrEqual(t, s.sessionCount, 10)
		}
		assert.Equal(t, 3, fired)
	})
}

func TestShouldRunFiller(t *testing.T) {
	// All-zero draws pin the filler divisor at 8.
	src := &scriptSource{ints: make([]int, 32)}
	s := New(30*time.Second, Ranges{}, src)

	var fillerAt []int
	for i := 0; i < 16; i++ {
		if s.ShouldRunFiller() {
			fillerAt = append(fillerAt, s.Checks())
		}
	}
	require.Equal(t, []int{8, 16}, fillerAt)
}

func TestCustomRanges(t *testing.T) {
	// Zero draws pin the session threshold at the range minimum.
	src := &scriptSource{ints: make([]int, 8)}
	s := New(30*time.Second, Ranges{SessionCheckMin: 2, SessionCheckMax: 3}, src)

	assert.False(t, s.ShouldCheckSession())
	assert.True(t, s.ShouldCheckSession())
}

func TestNextInterval(t *testing.T) {
	t.Run("short intervals pass through", func(t *testing.T) {
		src := &scriptSource{ints: []int{0, 20, 20, 20}}
		s := New(15*time.Second, Ranges{}, src)
		for i := 0; i < 3; i++ {
			assert.Equal(t, 15*time.Second, s.NextInterval())
		}
	})

	t.Run("boundary interval is not jittered", func(t *testing.T) {
		src := &scriptSource{ints: []int{0, 20}}
		s := New(20*time.Second, Ranges{}, src)
		assert.Equal(t, 20*time.Second, s.NextInterval())
	})

	t.Run("long intervals jitter within ten seconds", func(t *testing.T) {
		// Draws 0, 10, 20 map to -10s, 0s, +10s.
		src := &scriptSource{ints: []int{0, 0, 10, 20}}
		s := New(60*time.Second, Ranges{}, src)
		assert.Equal(t, 50*time.Second, s.NextInterval())
		assert.Equal(t, 60*time.Second, s.NextInterval())
		assert.Equal(t, 70*time.Second, s.NextInterval())
	})
}

func TestDelay(t *testing.T) {
	src := &scriptSource{ints: []int{0}, float: 0.5}
	s := New(30*time.Second, Ranges{}, src)

	assert.Equal(t, 1500*time.Millisecond, s.Delay(time.Second, 2*time.Second))
	assert.Equal(t, time.Second, s.Delay(time.Second, time.Second))
	assert.Equal(t, time.Second, s.Delay(time.Second, 500*time.Millisecond))
}
