package chipseq

import (
	"math"
)

// Clock converts a tick rate into per-tick sample counts without accumulating rounding errors.
//
// The tick rate is kept as a num/den rational (1/1000 Hz resolution);
// the fractional sample remainder is carried over to the next tick.
type Clock struct {
	sampleRate int

	// Tick rate in Hz is num/den.
	num int64
	den int64

	base  int64 // whole samples per tick
	rem   int64 // fractional part numerator, per tick
	drift int64 // carried fractional part, always in [0, num)
}

// ClockState is an opaque copy of the clock drift.
type ClockState struct {
	drift int64
}

// NewClock creates a clock for the given sample rate and tick rate.
func NewClock(sampleRate int, hz float64) Clock {
	var c Clock
	c.sampleRate = sampleRate
	c.SetRate(hz)
	return c
}

// SetRate changes the tick rate.
// The carried drift is rescaled so no fractional sample is lost or invented.
// Non-positive and NaN rates are ignored.
func (c *Clock) SetRate(hz float64) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return
	}
	num, den := hzToRat(hz)
	if c.num != 0 && c.drift != 0 {
		c.drift = c.drift * num / c.num
	}
	c.num = num
	c.den = den
	total := int64(c.sampleRate) * den
	c.base = total / num
	c.rem = total % num
	if c.drift >= num {
		c.drift = num - 1
	}
}

// Rate returns the current tick rate in Hz.
func (c *Clock) Rate() float64 {
	if c.num == 0 {
		return 0
	}
	return float64(c.num) / float64(c.den)
}

// SampleRate returns the output sample rate.
func (c *Clock) SampleRate() int { return c.sampleRate }

// Next returns the number of samples the next tick spans.
func (c *Clock) Next() int {
	n := c.base
	c.drift += c.rem
	if c.drift >= c.num {
		c.drift -= c.num
		n++
	}
	return int(n)
}

// Drift returns the carried fractional sample in [0, 1).
func (c *Clock) Drift() float64 {
	if c.num == 0 {
		return 0
	}
	return float64(c.drift) / float64(c.num)
}

func (c *Clock) Save() ClockState { return ClockState{drift: c.drift} }

func (c *Clock) Restore(s ClockState) {
	c.drift = s.drift
	if c.drift >= c.num {
		c.drift = 0
	}
}

func (c *Clock) Reset() { c.drift = 0 }
