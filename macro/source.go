package macro

// Kind selects how a macro produces values.
type Kind uint8

const (
	// KindSequence steps through Source.Values.
	KindSequence Kind = iota

	// KindADSR runs an attack-decay-sustain-release envelope.
	// The envelope parameters live at ValueLow..ValueRR.
	KindADSR

	// KindLFO runs a low frequency oscillator.
	// The oscillator parameters live at ValueLow, ValueHigh and ValueLFOSpeed..ValueLFOPhase.
	KindLFO
)

// Source.Open flags.
const (
	OpenEditor        uint8 = 1 << 0
	OpenActiveRelease uint8 = 1 << 3

	openKindShift = 1
	openKindMask  = 0b11
)

// Value indices used by ADSR and LFO macros.
const (
	ValueLow      = 0
	ValueHigh     = 1
	ValueAR       = 2 // attack rate
	ValueHT       = 3 // hold time
	ValueDR       = 4 // decay rate
	ValueSL       = 5 // sustain level
	ValueST       = 6 // sustain time
	ValueSR       = 7 // sustain rate
	ValueRR       = 8 // release rate
	ValueLFOSpeed = 11
	ValueLFOWave  = 12
	ValueLFOPhase = 13
)

// LFO waveforms (Values[ValueLFOWave]).
const (
	LFOTriangle = 0
	LFOSaw      = 1
	LFOPulse    = 2
)

// MaxLen is the maximum number of values a macro can hold.
const MaxLen = 256

// NoPoint marks an absent loop or release point.
const NoPoint = -1

// Source is an immutable macro definition owned by an instrument.
//
// Sources are shared by reference between every voice that plays the instrument;
// the playback code never modifies them.
type Source struct {
	Values []int

	// Loop is a Values index to jump to after the end (NoPoint disables looping).
	Loop int

	// Release is a Values index to hold at until the note is released (NoPoint disables it).
	Release int

	// Delay is the number of ticks to wait before the first step.
	Delay int

	// Speed is the number of ticks per step; values below 1 are treated as 1.
	Speed int

	// Open packs the editor flag, the Kind (bits 1-2) and the active release flag.
	Open uint8

	// Mode is a parameter-specific interpretation flag (fixed arpeggio, relative pitch, etc.).
	Mode uint8
}

// NewSequence creates a sequence macro without loop and release points.
func NewSequence(values ...int) *Source {
	return &Source{
		Values:  values,
		Loop:    NoPoint,
		Release: NoPoint,
		Speed:   1,
	}
}

// NewADSR creates an envelope macro that moves between low and high.
func NewADSR(low, high, ar, ht, dr, sl, st, sr, rr int) *Source {
	values := make([]int, ValueLFOPhase+1)
	values[ValueLow] = low
	values[ValueHigh] = high
	values[ValueAR] = ar
	values[ValueHT] = ht
	values[ValueDR] = dr
	values[ValueSL] = sl
	values[ValueST] = st
	values[ValueSR] = sr
	values[ValueRR] = rr
	return &Source{
		Values:  values,
		Loop:    NoPoint,
		Release: NoPoint,
		Speed:   1,
		Open:    uint8(KindADSR) << openKindShift,
	}
}

// NewLFO creates an oscillator macro that moves between low and high.
func NewLFO(low, high, speed, wave, phase int) *Source {
	values := make([]int, ValueLFOPhase+1)
	values[ValueLow] = low
	values[ValueHigh] = high
	values[ValueLFOSpeed] = speed
	values[ValueLFOWave] = wave
	values[ValueLFOPhase] = phase
	return &Source{
		Values:  values,
		Loop:    NoPoint,
		Release: NoPoint,
		Speed:   1,
		Open:    uint8(KindLFO) << openKindShift,
	}
}

func (s *Source) Kind() Kind {
	k := Kind((s.Open >> openKindShift) & openKindMask)
	if k > KindLFO {
		return KindSequence
	}
	return k
}

// ActiveRelease reports whether releasing a note jumps straight to the release point.
func (s *Source) ActiveRelease() bool { return s.Open&OpenActiveRelease != 0 }

func (s *Source) Len() int {
	return min(len(s.Values), MaxLen)
}

// IsEmpty reports whether s can never produce a value.
func (s *Source) IsEmpty() bool {
	return s == nil || len(s.Values) == 0
}

func (s *Source) speed() int {
	if s.Speed < 1 {
		return 1
	}
	return s.Speed
}

// point normalizes a loop or release index: absent points become n.
func point(p, n int) int {
	if p < 0 || p >= n {
		return n
	}
	return p
}

func (s *Source) param(i int) int {
	if i < len(s.Values) {
		return s.Values[i]
	}
	return 0
}
