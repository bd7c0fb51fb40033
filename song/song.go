package song

import (
	"errors"
	"fmt"

	"github.com/quasilyte/chipseq/macro"
)

// Limits of the song structure.
const (
	MaxChannels      = 128
	MaxOrders        = 256
	MaxPatternLength = 256
	MaxGrooveLength  = 16
	MaxEffects       = 8
)

// None is a sentinel for an empty row column.
const None = -1

// Special note column values.
// Regular notes are in [0, 179]; 60 is the middle C.
const (
	NoteNone     = -1
	NoteOff      = -2 // cut the note
	NoteRelease  = -3 // key off, let the envelope fade out
	MacroRelease = -4 // release the macros only
)

// Song is a read-only description of a piece of music.
// The playback code never modifies it.
type Song struct {
	Name string

	// Hz is the nominal tick rate.
	Hz float64

	// PatternLength is the number of rows in every pattern.
	PatternLength int

	// Speeds is the initial groove: ticks per row, used round-robin.
	// It must hold 1 to 16 entries.
	Speeds []int

	// Grooves can be selected with the effect 09.
	Grooves [][]int

	// The virtual tempo ratio N/D slows down (or speeds up) the row
	// progression without changing the tick rate.
	VirtualTempoN int
	VirtualTempoD int

	// ArpSpeed is the number of ticks per arpeggio stage.
	ArpSpeed int

	Channels []Channel

	// Orders maps an order index to a pattern index of every channel:
	// Orders[order][channel].
	Orders [][]int

	Instruments []*Instrument

	Compat Compat
}

type Channel struct {
	Name string

	// Patterns are indexed by the values stored inside Song.Orders.
	// A nil pattern is played as an empty one.
	Patterns []*Pattern
}

type Pattern struct {
	Rows []Row
}

type Row struct {
	// Note is either a note number, NoteNone or one of the special note values.
	Note int

	// Instrument is an instrument index or None.
	Instrument int

	// Volume is a volume level or None.
	Volume int

	Effects []Effect
}

type Effect struct {
	Code  int
	Value int
}

// EmptyRow returns a row that does nothing.
func EmptyRow() Row {
	return Row{Note: NoteNone, Instrument: None, Volume: None}
}

func (r *Row) IsEmpty() bool {
	return r.Note == NoteNone && r.Instrument == None && r.Volume == None && len(r.Effects) == 0
}

type Instrument struct {
	Name string

	Macros macro.Table
}

// Compat holds playback behavior switches that differ between
// song formats and tracker versions.
type Compat struct {
	JumpPolicy JumpPolicy

	// VolMacroLinger keeps the last volume macro value after a non-looping macro ends.
	VolMacroLinger bool

	// DelayBehavior allows a note delay to exceed the row length.
	// When false, such delays are ignored.
	DelayBehavior bool
}

// JumpPolicy resolves several jump (0B) and break (0D) effects on the same row.
type JumpPolicy uint8

const (
	// JumpFirstWins keeps the first jump or break in channel order.
	JumpFirstWins JumpPolicy = iota

	// JumpLastWins keeps the last jump or break in channel order.
	JumpLastWins

	// JumpOrderDependent combines the effects the way classic trackers do:
	// 0B sets the order and resets the row, 0D sets the row
	// (and advances the order unless a 0B already did).
	JumpOrderDependent
)

func (p JumpPolicy) String() string {
	switch p {
	case JumpFirstWins:
		return "first-wins"
	case JumpLastWins:
		return "last-wins"
	case JumpOrderDependent:
		return "order-dependent"
	default:
		return fmt.Sprintf("JumpPolicy(%d)", uint8(p))
	}
}

var (
	ErrNoChannels    = errors.New("song has no channels")
	ErrTooManyOrders = errors.New("song has too many orders")
)

// New creates an empty song with a single order and default settings.
func New(numChannels, patternLength int) *Song {
	s := &Song{
		Hz:            60,
		PatternLength: patternLength,
		Speeds:        []int{6},
		VirtualTempoN: 150,
		VirtualTempoD: 150,
		ArpSpeed:      1,
		Channels:      make([]Channel, numChannels),
		Orders:        [][]int{make([]int, numChannels)},
	}
	return s
}

// Validate reports the structural problems the player can't recover from.
// Out-of-range pattern and instrument references are not errors:
// they are played as silence.
func (s *Song) Validate() error {
	if len(s.Channels) == 0 {
		return ErrNoChannels
	}
	if len(s.Channels) > MaxChannels {
		return fmt.Errorf("song has %d channels, the limit is %d", len(s.Channels), MaxChannels)
	}
	if s.PatternLength < 1 || s.PatternLength > MaxPatternLength {
		return fmt.Errorf("invalid pattern length %d", s.PatternLength)
	}
	if len(s.Orders) > MaxOrders {
		return ErrTooManyOrders
	}
	return nil
}

// Pattern returns the pattern of the channel, allocating it if needed.
// It is a song building helper; the player never calls it.
func (s *Song) Pattern(ch, index int) *Pattern {
	c := &s.Channels[ch]
	for len(c.Patterns) <= index {
		c.Patterns = append(c.Patterns, nil)
	}
	if c.Patterns[index] == nil {
		p := &Pattern{Rows: make([]Row, s.PatternLength)}
		for i := range p.Rows {
			p.Rows[i] = EmptyRow()
		}
		c.Patterns[index] = p
	}
	return c.Patterns[index]
}

// AddInstrument appends an instrument and returns its index.
func (s *Song) AddInstrument(inst *Instrument) int {
	s.Instruments = append(s.Instruments, inst)
	return len(s.Instruments) - 1
}
