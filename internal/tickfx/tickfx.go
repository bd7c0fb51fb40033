// Package tickfx implements the per-tick formulas of continuous channel effects.
//
// Both the song scheduler and the command stream player run their
// channels through these functions, so a pre-rendered stream sounds
// exactly like the live playback it was exported from.
package tickfx

import (
	"math"
)

// SemitoneUnits is the number of fine pitch units in one semitone.
const SemitoneUnits = 64

// Vibrato shapes (pattern effect E3).
const (
	VibratoSine = iota
	VibratoUp
	VibratoDown
	VibratoTriangle
	VibratoSquare
)

// DefaultVibratoFine is the vibrato range that maps a full depth to one vibrato table amplitude.
const DefaultVibratoFine = 16

var (
	vibratoTable = makeVibratoTable()
	tremoloTable = makeTremoloTable()
)

func makeVibratoTable() [64]int {
	var tab [64]int
	for i := range tab {
		tab[i] = int(math.Round(127 * math.Sin(float64(i)*2*math.Pi/64)))
	}
	return tab
}

func makeTremoloTable() [128]int {
	var tab [128]int
	for i := range tab {
		tab[i] = int(math.Round(255 * 0.5 * (1 - math.Cos(float64(i)*2*math.Pi/128))))
	}
	return tab
}

// VibratoValue returns the waveform value at pos, in [-127, 127].
func VibratoValue(shape, pos int) int {
	pos &= 63
	switch shape {
	case VibratoUp:
		return (vibratoTable[pos] + 127) / 2
	case VibratoDown:
		return (vibratoTable[pos] - 127) / 2
	case VibratoTriangle:
		var v int
		switch {
		case pos < 16:
			v = pos * 8
		case pos < 48:
			v = (32 - pos) * 8
		default:
			v = (pos - 64) * 8
		}
		return clamp(v, -127, 127)
	case VibratoSquare:
		if pos < 32 {
			return 127
		}
		return -127
	default:
		return vibratoTable[pos]
	}
}

// VibratoOffset computes a pitch offset for the given vibrato state.
// depth is in [0, 15]; fine scales the range, DefaultVibratoFine keeps it as is.
func VibratoOffset(shape, pos, depth, fine int) int {
	return ((VibratoValue(shape, pos) * depth * fine) >> 4) / 15
}

// StepVibrato advances the vibrato phase.
func StepVibrato(pos, rate int) int {
	return (pos + rate) & 63
}

// Tremolo applies the tremolo attenuation to an 8.8 fixed point volume.
func Tremolo(volume, pos, depth int) int {
	if depth == 0 {
		return volume
	}
	return clampMin(volume-tremoloTable[pos&127]*depth, 0)
}

// StepTremolo advances the tremolo phase.
func StepTremolo(pos, rate int) int {
	return (pos + rate) & 127
}

// VolumeSlide describes an ongoing volume slide over 8.8 fixed point volumes.
type VolumeSlide struct {
	Speed int

	// Target stops the slide once reached; -1 means "no target".
	Target int
}

// Step applies one tick of the slide to vol and clamps the result in [0, volMax].
func (s *VolumeSlide) Step(vol, volMax int) int {
	if s.Speed == 0 {
		return vol
	}
	vol += s.Speed
	if s.Target != -1 {
		reached := (s.Speed > 0 && vol >= s.Target) || (s.Speed < 0 && vol <= s.Target)
		if reached {
			vol = s.Target
			s.Speed = 0
			s.Target = -1
		}
	}
	return clamp(vol, 0, volMax)
}

// ScaleVolume scales vol by a macro value in [0, max].
func ScaleVolume(vol, macroValue, max int) int {
	if max <= 0 {
		return vol
	}
	return (vol * clamp(macroValue, 0, max)) / max
}

// Porta tracks a portamento position in fine pitch units.
type Porta struct {
	// Pos is the current position, SemitoneUnits per note.
	Pos int

	Target int // target note
	Speed  int // units per tick; 0 means inactive
}

// Set positions the slide at the note without moving.
func (p *Porta) Set(note int) {
	p.Pos = note * SemitoneUnits
}

func (p *Porta) Active() bool { return p.Speed > 0 }

// Step moves the position towards the target.
// It returns true when the target is reached; the slide is stopped in that case.
func (p *Porta) Step() bool {
	if p.Speed <= 0 {
		return false
	}
	target := p.Target * SemitoneUnits
	p.Pos = slideTowards(p.Pos, target, p.Speed)
	if p.Pos == target {
		p.Speed = 0
		return true
	}
	return false
}

// ArpNote returns the note played at the given arpeggio stage.
// arp packs two semitone offsets as xy.
func ArpNote(note, arp, stage int) int {
	switch stage {
	case 1:
		return note + (arp >> 4)
	case 2:
		return note + (arp & 15)
	default:
		return note
	}
}

// NextArpStage cycles 0 -> 1 -> 2 -> 0.
func NextArpStage(stage int) int {
	stage++
	if stage > 2 {
		return 0
	}
	return stage
}

// PanSlide moves the stereo balance right (speed>0) or left (speed<0).
// The opposite side is raised to full level before the near side is lowered.
func PanSlide(l, r, speed int) (int, int) {
	switch {
	case speed > 0:
		if r < 255 {
			r = clampMax(r+speed, 255)
		} else {
			l = clampMin(l-speed, 0)
		}
	case speed < 0:
		if l < 255 {
			l = clampMax(l-speed, 255)
		} else {
			r = clampMin(r+speed, 0)
		}
	}
	return l, r
}

// Panbrello returns the left and right levels at the given phase.
// depth is in [0, 15]; a zero depth keeps both sides at full level.
func Panbrello(pos, depth int) (int, int) {
	pos &= 255
	ramp := (pos & 0x3f) << 2
	var l, r int
	switch pos & 0xc0 {
	case 0x00:
		l, r = ramp^0xff, 0xff
	case 0x40:
		l, r = ramp, 0xff
	case 0x80:
		l, r = 0xff, ramp^0xff
	default:
		l, r = 0xff, ramp
	}
	l = 0xff - ((0xff-l)*depth)/15
	r = 0xff - ((0xff-r)*depth)/15
	return l, r
}

// StepPanbrello advances the panbrello phase.
func StepPanbrello(pos, rate int) int {
	return (pos + rate) & 255
}

func slideTowards(v, goal, delta int) int {
	if v > goal {
		return clampMin(v-delta, goal)
	}
	if v < goal {
		return clampMax(v+delta, goal)
	}
	return v
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func clampMax(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func clamp(v, min, max int) int {
	return clampMax(clampMin(v, min), max)
}
