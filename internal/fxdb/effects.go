package fxdb

type Effect struct {
	Op  EffectOp
	Arg int
}

type EffectOp int

const (
	EffectNone EffectOp = iota

	// Encoding: effect=0x00
	// Arg: semitone offsets (xy)
	EffectArpeggio

	// Encoding: effect=0x01
	// Arg: slide speed
	EffectPitchSlideUp

	// Encoding: effect=0x02
	// Arg: slide speed
	EffectPitchSlideDown

	// Encoding: effect=0x03
	// Arg: slide speed (0 stops the slide)
	EffectPortamento

	// Encoding: effect=0x04
	// Arg: rate (x) and depth (y)
	EffectVibrato

	// Encoding: effect=0x07
	// Arg: rate (x) and depth (y)
	EffectTremolo

	// Encoding: effect=0x08
	// Arg: left (x) and right (y) levels
	EffectPanning

	// Encoding: effect=0x09
	// Arg: groove index
	EffectSetGroove

	// Encoding: effect=0x0A
	// Arg: slide up (x) or down (y) speed
	EffectVolumeSlide

	// Encoding: effect=0x0B
	// Arg: order index
	EffectJump

	// Encoding: effect=0x0C
	// Arg: retrigger period in ticks
	EffectRetrigger

	// Encoding: effect=0x0D
	// Arg: row index inside the next order
	EffectBreak

	// Encoding: effect=0x0F
	// Arg: ticks per row
	EffectSetSpeed

	// Encoding: effect=0x80
	// Arg: 0 is full left, 0x80 is center, 0xff is full right
	EffectLinearPanning

	// Encoding: effect=0x83
	// Arg: slide right (x) or left (y) speed
	EffectPanSlide

	// Encoding: effect=0x84
	// Arg: rate (x) and depth (y)
	EffectPanbrello

	// Encoding: effect=0xC0
	// Arg: tick rate in Hz
	EffectSetTickRate

	// Encoding: effect=0xE0
	// Arg: ticks per arpeggio stage
	EffectArpSpeed

	// Encoding: effect=0xE1
	// Arg: speed (x) and semitones (y)
	EffectNoteSlideUp

	// Encoding: effect=0xE2
	// Arg: speed (x) and semitones (y)
	EffectNoteSlideDown

	// Encoding: effect=0xE3
	// Arg: vibrato shape
	EffectVibratoShape

	// Encoding: effect=0xE4
	// Arg: vibrato range
	EffectVibratoRange

	// Encoding: effect=0xE5
	// Arg: pitch, 0x80 is center
	EffectPitch

	// Encoding: effect=0xEA
	// Arg: 0 disables legato
	EffectLegato

	// Encoding: effect=0xEC
	// Arg: tick number
	EffectNoteCut

	// Encoding: effect=0xED
	// Arg: tick number
	EffectNoteDelay

	// Encoding: effect=0xEE
	// Arg: external sync value
	EffectExternal

	// Encoding: effect=0xF5
	// Arg: macro parameter
	EffectMacroOff

	// Encoding: effect=0xF6
	// Arg: macro parameter
	EffectMacroOn

	// Encoding: effect=0xF7
	// Arg: macro parameter
	EffectMacroRestart

	// Encoding: effect=0xFF
	// Arg: ignored
	EffectStopSong
)

var effectByCode = map[int]EffectOp{
	0x00: EffectArpeggio,
	0x01: EffectPitchSlideUp,
	0x02: EffectPitchSlideDown,
	0x03: EffectPortamento,
	0x04: EffectVibrato,
	0x07: EffectTremolo,
	0x08: EffectPanning,
	0x09: EffectSetGroove,
	0x0A: EffectVolumeSlide,
	0x0B: EffectJump,
	0x0C: EffectRetrigger,
	0x0D: EffectBreak,
	0x0F: EffectSetSpeed,
	0x80: EffectLinearPanning,
	0x83: EffectPanSlide,
	0x84: EffectPanbrello,
	0xC0: EffectSetTickRate,
	0xE0: EffectArpSpeed,
	0xE1: EffectNoteSlideUp,
	0xE2: EffectNoteSlideDown,
	0xE3: EffectVibratoShape,
	0xE4: EffectVibratoRange,
	0xE5: EffectPitch,
	0xEA: EffectLegato,
	0xEC: EffectNoteCut,
	0xED: EffectNoteDelay,
	0xEE: EffectExternal,
	0xF5: EffectMacroOff,
	0xF6: EffectMacroOn,
	0xF7: EffectMacroRestart,
	0xFF: EffectStopSong,
}

// ConvertEffect maps a pattern effect column to an effect op.
// Unknown codes and negative (empty) columns produce EffectNone.
func ConvertEffect(code, value int) Effect {
	e := Effect{Arg: value}
	if value < 0 {
		e.Arg = 0
	}
	op, ok := effectByCode[code]
	if !ok {
		return Effect{}
	}
	e.Op = op

	// Delay and cut without a value are meaningless.
	if (op == EffectNoteDelay || op == EffectNoteCut) && value < 0 {
		return Effect{}
	}

	return e
}

func (e Effect) IsEmpty() bool { return e.Op == EffectNone }

// IsJump reports whether the effect changes the playback position.
func (e Effect) IsJump() bool {
	return e.Op == EffectJump || e.Op == EffectBreak
}
