package chipseq

import (
	"fmt"
)

// NoteNull is a CmdNoteOn argument that retriggers the current note.
const NoteNull = 0x7fffffff

// CommandKind is a Command tag that tells the dispatcher which chip action to perform.
// See Command docs for more info.
type CommandKind uint8

const (
	// CmdNoteOn starts a note.
	// Arg0 is a note number or NoteNull.
	CmdNoteOn CommandKind = iota

	// CmdNoteOff cuts the note immediately.
	CmdNoteOff

	// CmdNoteOffEnv releases the note, letting the chip envelope fade it out.
	CmdNoteOffEnv

	// CmdEnvRelease releases the chip envelope without keying off.
	CmdEnvRelease

	// CmdInstrument selects an instrument.
	// Arg0 is an instrument index.
	CmdInstrument

	// CmdVolume sets the channel output volume.
	// Arg0 is in [0, volMax] range where volMax is a per-channel chip value.
	CmdVolume

	// CmdPitch sets a fine pitch offset.
	// Arg0 is measured in 1/64 of a semitone.
	CmdPitch

	// CmdPanning sets the stereo balance.
	// Arg0 is the left level, Arg1 is the right level, both in [0, 255].
	CmdPanning

	// CmdNotePorta advances a portamento by one tick.
	// Arg0 is a speed (1/64 of a semitone per tick), Arg1 is a target note.
	CmdNotePorta

	// CmdLegato changes the note without retriggering it.
	// Arg0 is a note number.
	CmdLegato

	// CmdPrePorta announces an upcoming portamento.
	// Arg0 is 1 when portamento is active, Arg1 is 1 when the chip should reset its slide state.
	CmdPrePorta

	// CmdPhaseReset restarts the oscillator phase.
	CmdPhaseReset

	// CmdDuty sets a duty cycle (or a noise mode) value.
	CmdDuty

	// CmdWave selects a waveform.
	CmdWave

	// CmdMacroParam carries any other macro output.
	// Arg0 is a macro.Param, Arg1 is its value.
	CmdMacroParam

	// CmdExternal forwards an external sync value (pattern effect EE).
	CmdExternal

	// Hint commands are never dispatched to a chip.
	// They only exist inside command streams, where they configure
	// the continuous effects the stream player computes on its own.

	// CmdHintVibrato sets vibrato depth (Arg0) and rate (Arg1).
	CmdHintVibrato
	// CmdHintVibratoShape sets the vibrato waveform.
	CmdHintVibratoShape
	// CmdHintVibratoRange sets the vibrato fine range.
	CmdHintVibratoRange
	// CmdHintArpeggio sets arpeggio offsets packed as xy.
	CmdHintArpeggio
	// CmdHintArpTime sets the number of ticks per arpeggio stage.
	CmdHintArpTime
	// CmdHintVolSlide sets a volume slide speed (8.8 units per tick).
	CmdHintVolSlide
	// CmdHintVolSlideTarget sets a volume slide speed (Arg0) that stops at Arg1.
	CmdHintVolSlideTarget
	// CmdHintPorta sets a portamento target note (Arg0) and speed (Arg1).
	CmdHintPorta
	// CmdHintTremolo sets tremolo depth (Arg0) and rate (Arg1).
	CmdHintTremolo
	// CmdHintPanbrello sets panbrello depth (Arg0) and rate (Arg1).
	CmdHintPanbrello
	// CmdHintPanSlide sets a pan slide speed.
	CmdHintPanSlide

	NumCommandKinds
)

var commandKindNames = [NumCommandKinds]string{
	CmdNoteOn:             "note_on",
	CmdNoteOff:            "note_off",
	CmdNoteOffEnv:         "note_off_env",
	CmdEnvRelease:         "env_release",
	CmdInstrument:         "instrument",
	CmdVolume:             "volume",
	CmdPitch:              "pitch",
	CmdPanning:            "panning",
	CmdNotePorta:          "note_porta",
	CmdLegato:             "legato",
	CmdPrePorta:           "pre_porta",
	CmdPhaseReset:         "phase_reset",
	CmdDuty:               "duty",
	CmdWave:               "wave",
	CmdMacroParam:         "macro_param",
	CmdExternal:           "external",
	CmdHintVibrato:        "hint_vibrato",
	CmdHintVibratoShape:   "hint_vibrato_shape",
	CmdHintVibratoRange:   "hint_vibrato_range",
	CmdHintArpeggio:       "hint_arpeggio",
	CmdHintArpTime:        "hint_arp_time",
	CmdHintVolSlide:       "hint_vol_slide",
	CmdHintVolSlideTarget: "hint_vol_slide_target",
	CmdHintPorta:          "hint_porta",
	CmdHintTremolo:        "hint_tremolo",
	CmdHintPanbrello:      "hint_panbrello",
	CmdHintPanSlide:       "hint_pan_slide",
}

var commandKindArity = [NumCommandKinds]uint8{
	CmdNoteOn:             1,
	CmdInstrument:         1,
	CmdVolume:             1,
	CmdPitch:              1,
	CmdPanning:            2,
	CmdNotePorta:          2,
	CmdLegato:             1,
	CmdPrePorta:           2,
	CmdDuty:               1,
	CmdWave:               1,
	CmdMacroParam:         2,
	CmdExternal:           1,
	CmdHintVibrato:        2,
	CmdHintVibratoShape:   1,
	CmdHintVibratoRange:   1,
	CmdHintArpeggio:       1,
	CmdHintArpTime:        1,
	CmdHintVolSlide:       1,
	CmdHintVolSlideTarget: 2,
	CmdHintPorta:          2,
	CmdHintTremolo:        2,
	CmdHintPanbrello:      2,
	CmdHintPanSlide:       1,
}

func (k CommandKind) String() string {
	if k < NumCommandKinds {
		return commandKindNames[k]
	}
	return fmt.Sprintf("command(%d)", uint8(k))
}

// Arity reports how many of the Command arguments are meaningful for this kind.
func (k CommandKind) Arity() int {
	if k < NumCommandKinds {
		return int(commandKindArity[k])
	}
	return 0
}

// IsHint reports whether this kind is consumed by the stream player instead of a chip.
func (k CommandKind) IsHint() bool {
	return k >= CmdHintVibrato && k < NumCommandKinds
}

// Command is an abstract chip action addressed to a single channel.
//
// Commands are produced by the scheduler and the stream player;
// they are consumed by a Dispatcher.
type Command struct {
	Kind    CommandKind
	Channel int
	Arg0    int
	Arg1    int
}

func (c Command) String() string {
	switch c.Kind.Arity() {
	case 0:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Channel)
	case 1:
		return fmt.Sprintf("%s(%d: %d)", c.Kind, c.Channel, c.Arg0)
	default:
		return fmt.Sprintf("%s(%d: %d, %d)", c.Kind, c.Channel, c.Arg0, c.Arg1)
	}
}

// Dispatcher receives the Commands for a chip.
//
// The return value is kind-specific; most commands ignore it.
type Dispatcher interface {
	Dispatch(c Command) int
}

// VolumeMaxer is an optional Dispatcher extension that reports the
// maximum volume value a channel accepts.
type VolumeMaxer interface {
	VolumeMax(channel int) int
}

// Acquirer is an optional Dispatcher extension.
// The engine calls Acquire with the number of frames to render between two ticks.
type Acquirer interface {
	Acquire(frames int)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(c Command) int

func (f DispatcherFunc) Dispatch(c Command) int { return f(c) }

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(Command) int { return 0 }
