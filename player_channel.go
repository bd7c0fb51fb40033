package chipseq

import (
	"github.com/quasilyte/chipseq/internal/tickfx"
	"github.com/quasilyte/chipseq/macro"
	"github.com/quasilyte/chipseq/song"
)

type channelState struct {
	id int

	// Note-related data.
	note    int
	keyOn   bool
	legato  bool
	ins     int
	insData *song.Instrument

	// Volumes are 8.8 fixed point values.
	volume    int
	volMax    int
	volSlide  tickfx.VolumeSlide
	pitch     int
	panL      int
	panR      int
	panSpeed  int
	arp       int
	arpStage  int
	arpTicks  int
	arpYield  bool
	porta     tickfx.Porta
	portaStop bool

	// Vibrato effect state.
	vibratoDepth int
	vibratoRate  int
	vibratoPos   int
	vibratoShape int
	vibratoFine  int

	tremoloDepth int
	tremoloRate  int
	tremoloPos   int

	panbrelloDepth int
	panbrelloRate  int
	panbrelloPos   int

	retrigSpeed int
	retrigTick  int
	cut         int

	// Note delay state.
	rowDelay int
	delayed  *patternRow

	macros     macro.Interpreter
	macroVol   int // -1 when the volume macro never produced a value
	macroPanL  int
	macroPanR  int
	arpMacro   int
	arpFixed   bool
	pitchMacro int
	paramsSent [macro.NumParams]int

	// The last values sent to the dispatcher.
	sentNote   int
	sentVolume int
	sentPitch  int
	sentPanL   int
	sentPanR   int

	out []Command
}

const paramUnset = -1 << 31

func (ch *channelState) Reset(volMax int) {
	*ch = channelState{
		id:     ch.id,
		out:    ch.out,
		macros: ch.macros,
	}
	ch.macros.Reset()
	ch.note = song.NoteNone
	ch.ins = song.None
	ch.volMax = volMax
	ch.volume = volMax
	ch.volSlide.Target = -1
	ch.panL = 0xff
	ch.panR = 0xff
	ch.vibratoFine = tickfx.DefaultVibratoFine
	ch.resetMacroOutputs()

	ch.sentNote = song.NoteNone
	ch.sentVolume = volMax >> 8
	ch.sentPanL = 0xff
	ch.sentPanR = 0xff
}

func (ch *channelState) resetMacroOutputs() {
	ch.macroVol = -1
	ch.macroPanL = -1
	ch.macroPanR = -1
	ch.arpMacro = 0
	ch.arpFixed = false
	ch.pitchMacro = 0
	for i := range ch.paramsSent {
		ch.paramsSent[i] = paramUnset
	}
}

func (ch *channelState) emit(kind CommandKind, arg0, arg1 int) {
	ch.out = append(ch.out, Command{Kind: kind, Channel: ch.id, Arg0: arg0, Arg1: arg1})
}

// outputVolume combines the channel volume with tremolo and the volume macro.
func (ch *channelState) outputVolume() int {
	vol := tickfx.Tremolo(ch.volume, ch.tremoloPos, ch.tremoloDepth) >> 8
	if ch.macroVol >= 0 {
		vol = tickfx.ScaleVolume(vol, ch.macroVol, ch.volMax>>8)
	}
	return vol
}

func (ch *channelState) outputPitch() int {
	pitch := ch.pitch + ch.pitchMacro
	if ch.vibratoDepth != 0 {
		pitch += tickfx.VibratoOffset(ch.vibratoShape, ch.vibratoPos, ch.vibratoDepth, ch.vibratoFine)
	}
	return pitch
}

func (ch *channelState) outputNote() int {
	if ch.arpFixed {
		return ch.arpMacro
	}
	note := ch.note
	if ch.arp != 0 {
		note = tickfx.ArpNote(note, ch.arp, ch.arpStage)
	}
	return note + ch.arpMacro
}

func (ch *channelState) outputPanning() (int, int) {
	l, r := ch.panL, ch.panR
	if ch.macroPanL >= 0 {
		l = ch.macroPanL
	}
	if ch.macroPanR >= 0 {
		r = ch.macroPanR
	}
	return l, r
}

// ChannelState is a read-only copy of the channel playback state.
type ChannelState struct {
	Note       int
	KeyOn      bool
	Instrument int

	// Volume is the last volume sent to the dispatcher.
	Volume int
	Pitch  int
	PanL   int
	PanR   int

	Arp          int
	VibratoDepth int
	VibratoRate  int
	PortaSpeed   int
	PortaTarget  int

	// MacrosActive reports whether the channel has any running macro.
	MacrosActive bool
}

func (ch *channelState) State() ChannelState {
	return ChannelState{
		Note:         ch.note,
		KeyOn:        ch.keyOn,
		Instrument:   ch.ins,
		Volume:       ch.sentVolume,
		Pitch:        ch.sentPitch,
		PanL:         ch.sentPanL,
		PanR:         ch.sentPanR,
		Arp:          ch.arp,
		VibratoDepth: ch.vibratoDepth,
		VibratoRate:  ch.vibratoRate,
		PortaSpeed:   ch.porta.Speed,
		PortaTarget:  ch.porta.Target,
		MacrosActive: ch.macros.Bound(),
	}
}
