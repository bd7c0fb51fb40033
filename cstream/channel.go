package cstream

import (
	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/internal/tickfx"
)

type channel struct {
	id int

	pc        int // 0 means halted
	waitTicks int
	stack     callStack
	loop      int // remaining loop repetitions; -1 outside of a loop
	err       error
	trace     traceRing

	note   int
	keyOn  bool
	volume int
	volMax int
	pitch  int
	panL   int
	panR   int

	volSlide tickfx.VolumeSlide

	vibratoDepth int
	vibratoRate  int
	vibratoPos   int
	vibratoShape int
	vibratoFine  int

	tremoloDepth int
	tremoloRate  int
	tremoloPos   int

	panSpeed       int
	panbrelloDepth int
	panbrelloRate  int
	panbrelloPos   int

	arp      int
	arpTime  int
	arpStage int
	arpTicks int
	arpYield bool

	porta tickfx.Porta

	sentNote   int
	sentVolume int
	sentPitch  int
	sentPanL   int
	sentPanR   int
}

func (ch *channel) reset(start, volMax int) {
	*ch = channel{
		id:    ch.id,
		stack: ch.stack,
	}
	ch.stack.len = 0
	ch.pc = start
	ch.loop = -1
	ch.note = chipseq.NoteNull
	ch.volMax = volMax
	ch.volume = volMax
	ch.volSlide.Target = -1
	ch.panL = 0xff
	ch.panR = 0xff
	ch.vibratoFine = tickfx.DefaultVibratoFine
	ch.arpTime = 1

	ch.sentNote = chipseq.NoteNull
	ch.sentVolume = volMax >> 8
	ch.sentPanL = 0xff
	ch.sentPanR = 0xff
}

func (ch *channel) effectsActive() bool {
	return ch.volSlide.Speed != 0 ||
		ch.tremoloDepth != 0 ||
		ch.vibratoDepth != 0 ||
		ch.porta.Active() ||
		ch.arp != 0 ||
		ch.panSpeed != 0 ||
		ch.panbrelloDepth != 0
}

// applyCommand tracks the channel state changed by a dispatched command.
func (ch *channel) applyCommand(c chipseq.Command) {
	switch c.Kind {
	case chipseq.CmdNoteOn:
		if c.Arg0 == chipseq.NoteNull {
			ch.keyOn = true
			break
		}
		ch.note = c.Arg0
		ch.keyOn = true
		ch.porta.Set(c.Arg0)
		ch.porta.Speed = 0
		ch.vibratoPos = 0
		ch.arpStage = 0
		ch.arpTicks = ch.arpTime
		ch.arpYield = true
		ch.sentNote = c.Arg0
	case chipseq.CmdNoteOff, chipseq.CmdNoteOffEnv:
		ch.keyOn = false
		ch.porta.Speed = 0
	case chipseq.CmdVolume:
		ch.volume = clamp(c.Arg0<<8, 0, ch.volMax)
		ch.sentVolume = c.Arg0
	case chipseq.CmdPitch:
		ch.pitch = c.Arg0
		ch.sentPitch = c.Arg0
	case chipseq.CmdPanning:
		ch.panL = c.Arg0
		ch.panR = c.Arg1
		ch.sentPanL = c.Arg0
		ch.sentPanR = c.Arg1
	case chipseq.CmdLegato:
		if c.Arg0 == chipseq.NoteNull {
			break
		}
		ch.note = c.Arg0
		ch.porta.Set(c.Arg0)
		ch.sentNote = c.Arg0
	}
}

func (ch *channel) applyHint(c chipseq.Command) {
	switch c.Kind {
	case chipseq.CmdHintVibrato:
		ch.vibratoDepth = c.Arg0
		ch.vibratoRate = c.Arg1
	case chipseq.CmdHintVibratoShape:
		ch.vibratoShape = c.Arg0
	case chipseq.CmdHintVibratoRange:
		ch.vibratoFine = c.Arg0
	case chipseq.CmdHintArpeggio:
		ch.arp = c.Arg0
		if c.Arg0 == 0 {
			ch.arpStage = 0
		}
	case chipseq.CmdHintArpTime:
		ch.arpTime = max(c.Arg0, 1)
	case chipseq.CmdHintVolSlide:
		ch.volSlide = tickfx.VolumeSlide{Speed: c.Arg0, Target: -1}
	case chipseq.CmdHintVolSlideTarget:
		ch.volSlide = tickfx.VolumeSlide{Speed: c.Arg0, Target: c.Arg1}
	case chipseq.CmdHintPorta:
		ch.porta.Target = c.Arg0
		ch.porta.Speed = c.Arg1
	case chipseq.CmdHintTremolo:
		ch.tremoloDepth = c.Arg0
		ch.tremoloRate = c.Arg1
	case chipseq.CmdHintPanbrello:
		ch.panbrelloDepth = c.Arg0
		ch.panbrelloRate = c.Arg1
		ch.panSpeed = 0
	case chipseq.CmdHintPanSlide:
		ch.panSpeed = c.Arg0
	}
}

type stackFrame struct {
	ret  int
	loop int
}

// callStack is a fixed capacity stack; the capacity is declared by the stream.
type callStack struct {
	frames []stackFrame
	len    int
}

func (s *callStack) push(f stackFrame) bool {
	if s.len >= len(s.frames) {
		return false
	}
	s.frames[s.len] = f
	s.len++
	return true
}

func (s *callStack) pop() (stackFrame, bool) {
	if s.len == 0 {
		return stackFrame{}, false
	}
	s.len--
	return s.frames[s.len], true
}

// TraceEntry records an executed instruction.
type TraceEntry struct {
	Addr int
	Op   byte
	Tick int
}

const traceSize = 64

type traceRing struct {
	buf  [traceSize]TraceEntry
	next int
	n    int
}

func (t *traceRing) push(e TraceEntry) {
	t.buf[t.next] = e
	t.next = (t.next + 1) % traceSize
	if t.n < traceSize {
		t.n++
	}
}

// entries returns the recorded entries, oldest first.
func (t *traceRing) entries() []TraceEntry {
	out := make([]TraceEntry, 0, t.n)
	start := (t.next - t.n + traceSize) % traceSize
	for i := 0; i < t.n; i++ {
		out = append(out, t.buf[(start+i)%traceSize])
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
