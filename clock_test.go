package chipseq

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClockExactRate(t *testing.T) {
	c := NewClock(44100, 60)
	for i := 0; i < 10; i++ {
		if n := c.Next(); n != 735 {
			t.Fatalf("tick %d: have %d samples, want 735", i, n)
		}
	}
	if c.Drift() != 0 {
		t.Fatalf("drift: have %v, want 0", c.Drift())
	}
}

func TestClockFractionalRate(t *testing.T) {
	// 48000/50.5 = 950.495...
	c := NewClock(48000, 50.5)
	total := 0
	for i := 0; i < 101; i++ {
		total += c.Next()
	}
	if total != 96000 {
		t.Fatalf("101 ticks at 50.5Hz: have %d samples, want 96000", total)
	}
	if c.Drift() != 0 {
		t.Fatalf("drift after a full period: %v", c.Drift())
	}
}

func TestClockSaveRestore(t *testing.T) {
	c := NewClock(44100, 61)
	c.Next()
	saved := c.Save()
	drift := c.Drift()
	c.Next()
	c.Next()
	c.Restore(saved)
	if c.Drift() != drift {
		t.Fatalf("restored drift: have %v, want %v", c.Drift(), drift)
	}
	c.Reset()
	if c.Drift() != 0 {
		t.Fatal("reset kept the drift")
	}
	c.SetRate(-1)
	if c.Rate() != 61 {
		t.Fatalf("invalid rate was applied: %v", c.Rate())
	}
}

func TestClockProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("samples never drift more than one from the exact value", prop.ForAll(
		func(milliHz, sampleRate, ticks int) bool {
			hz := float64(milliHz) / 1000
			c := NewClock(sampleRate, hz)
			total := 0
			for i := 0; i < ticks; i++ {
				total += c.Next()
				if d := c.Drift(); d < 0 || d >= 1 {
					return false
				}
			}
			exact := float64(ticks) * float64(sampleRate) / hz
			return math.Abs(float64(total)-exact) < 1
		},
		gen.IntRange(10000, 1000000),
		gen.OneConstOf(22050, 44100, 48000),
		gen.IntRange(1, 4000),
	))

	properties.Property("tick count matches the rate over a second", prop.ForAll(
		func(hz, sampleRate int) bool {
			c := NewClock(sampleRate, float64(hz))
			samples := 0
			ticks := 0
			for samples < sampleRate*2 {
				samples += c.Next()
				ticks++
			}
			return ticks >= hz*2-1 && ticks <= hz*2+1
		},
		gen.IntRange(1, 1000),
		gen.OneConstOf(22050, 44100, 48000),
	))

	properties.Property("rate changes keep the drift in range", prop.ForAll(
		func(hz1, hz2, ticks int) bool {
			c := NewClock(44100, float64(hz1)/7)
			for i := 0; i < ticks; i++ {
				c.Next()
			}
			c.SetRate(float64(hz2) / 3)
			d := c.Drift()
			return d >= 0 && d < 1
		},
		gen.IntRange(7, 7000),
		gen.IntRange(3, 3000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
