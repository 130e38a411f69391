package fallback

import (
	"math"
	"time"
)

// Schedule is the exponential-backoff attempt schedule used while waiting for
// the list cache
type Schedule struct {
	Base     time.Duration
	Factor   float64
	Max      time.Duration
	Attempts int
}

// DefaultSchedule waits 100ms, growing by 1.5x up to 1s per attempt, 20 attempts
func DefaultSchedule() Schedule {
	return Schedule{
		Base:     100 * time.Millisecond,
		Factor:   1.5,
		Max:      time.Second,
		Attempts: 20,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.Base <= 0 {
		s.Base = d.Base
	}
	if s.Factor < 1 {
		s.Factor = d.Factor
	}
	if s.Max <= 0 {
		s.Max = d.Max
	}
	if s.Attempts <= 0 {
		s.Attempts = d.Attempts
	}
	return s
}

// Delay returns the wait for a zero-based attempt
func (s Schedule) Delay(attempt int) time.Duration {
	s = s.withDefaults()
	delay := float64(s.Base) * math.Pow(s.Factor, float64(attempt))
	if delay >= float64(s.Max) {
		return s.Max
	}
	return time.Duration(delay)
}

// Budget is the worst-case total wait
func (s Schedule) Budget() time.Duration {
	s = s.withDefaults()
	var total time.Duration
	for i := 0; i < s.Attempts; i++ {
		total += s.Delay(i)
	}
	return total
}
