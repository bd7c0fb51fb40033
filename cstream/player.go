package cstream

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/internal/tickfx"
)

// Config configures a stream Player.
type Config struct {
	// Dispatcher receives the produced commands.
	//
	// A nil value discards them.
	Dispatcher chipseq.Dispatcher

	// Logger is used to report halted channels.
	//
	// A nil value means slog.Default().
	Logger *slog.Logger

	// DefaultVolumeMax is the channel volume range used when the dispatcher
	// does not implement chipseq.VolumeMaxer.
	//
	// A zero value means 127.
	DefaultVolumeMax int

	// MaxStepsPerTick limits the number of instructions a channel can
	// execute during one tick; a channel that exceeds it is halted.
	//
	// A zero value means 4096.
	MaxStepsPerTick int
}

var (
	ErrStackOverflow  = errors.New("call stack overflow")
	ErrStackUnderflow = errors.New("call stack underflow")
	ErrRunaway        = errors.New("too many instructions in one tick")
	ErrBadTarget      = errors.New("branch target is outside of the program")
)

// Player executes a command stream.
//
// Every channel runs its own program; a fault halts the faulty channel only.
type Player struct {
	stream     *Stream
	dispatcher chipseq.Dispatcher
	log        *slog.Logger

	maxSteps  int
	volumeMax []int

	channels []channel

	curTick int
	rate    uint32

	access   []uint16
	decayPos int
}

// NewPlayer parses the stream and prepares it for playback.
func NewPlayer(data []byte, config Config) (*Player, error) {
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewStreamPlayer(s, config), nil
}

// NewStreamPlayer creates a player for an already parsed stream.
func NewStreamPlayer(s *Stream, config Config) *Player {
	applyConfigDefaults(&config)
	p := &Player{
		stream:     s,
		dispatcher: config.Dispatcher,
		log:        config.Logger,
		maxSteps:   config.MaxStepsPerTick,
		channels:   make([]channel, s.NumChannels),
		volumeMax:  make([]int, s.NumChannels),
		access:     make([]uint16, len(s.Data)),
	}
	vm, hasVolumeMax := config.Dispatcher.(chipseq.VolumeMaxer)
	for i := range p.volumeMax {
		v := config.DefaultVolumeMax
		if hasVolumeMax {
			if n := vm.VolumeMax(i); n > 0 {
				v = n
			}
		}
		p.volumeMax[i] = (v << 8) | 0xff
	}
	for i := range p.channels {
		ch := &p.channels[i]
		ch.id = i
		ch.stack.frames = make([]stackFrame, s.StackDepths[i])
	}
	p.Reset()
	return p
}

func applyConfigDefaults(config *Config) {
	if config.Dispatcher == nil {
		config.Dispatcher = chipseq.DispatcherFunc(func(chipseq.Command) int { return 0 })
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DefaultVolumeMax <= 0 {
		config.DefaultVolumeMax = 127
	}
	if config.MaxStepsPerTick <= 0 {
		config.MaxStepsPerTick = 4096
	}
}

// Reset rewinds every channel to its start address.
func (p *Player) Reset() {
	for i := range p.channels {
		ch := &p.channels[i]
		ch.reset(p.stream.Starts[i], p.volumeMax[i])
	}
	p.curTick = 0
	p.rate = 0
	p.decayPos = 0
	for i := range p.access {
		p.access[i] = 0xc0c0
	}
}

// Stream returns the stream being played.
func (p *Player) Stream() *Stream { return p.stream }

// CurTick returns the number of ticks played since the last reset.
func (p *Player) CurTick() int { return p.curTick }

// Rate returns the tick rate requested by the stream in Hz.
// Zero means the stream never set it.
func (p *Player) Rate() float64 { return RateHz(p.rate) }

// Access returns the per-byte access timestamps.
// Use AccessAge to get the number of ticks since a byte was executed.
func (p *Player) Access() []uint16 { return p.access }

// AccessAge returns the number of ticks since the byte at addr was last executed.
func (p *Player) AccessAge(addr int) int {
	if addr < 0 || addr >= len(p.access) {
		return 0
	}
	return int(uint16(p.curTick) - p.access[addr])
}

// NumChannels returns the number of stream channels.
func (p *Player) NumChannels() int { return len(p.channels) }

// Tick executes one tick of every channel.
// It returns false when all channels are halted.
func (p *Player) Tick() bool {
	active := false
	for i := range p.channels {
		ch := &p.channels[i]
		if ch.pc == 0 {
			continue
		}
		p.runChannel(ch)
		if ch.pc != 0 {
			p.postProcess(ch)
			active = true
		}
	}
	p.decay()
	p.curTick++
	return active
}

func (p *Player) runChannel(ch *channel) {
	ch.waitTicks--
	steps := 0
	for ch.waitTicks <= 0 && ch.pc != 0 {
		steps++
		if steps > p.maxSteps {
			p.halt(ch, Instruction{Addr: ch.pc}, ErrRunaway)
			return
		}
		ins, err := Decode(p.stream, ch.pc)
		if err != nil {
			p.halt(ch, ins, err)
			return
		}
		p.touch(ins)
		ch.trace.push(TraceEntry{Addr: ins.Addr, Op: ins.Op, Tick: p.curTick})
		ch.pc += ins.Size
		p.exec(ch, ins)
	}
}

func (p *Player) exec(ch *channel, ins Instruction) {
	switch ins.Kind {
	case InstrCommand:
		p.execCommand(ch, ins.Command)

	case InstrWait:
		ch.waitTicks = ins.Wait

	case InstrCall:
		if !p.stream.validAddr(ins.Target) {
			p.halt(ch, ins, ErrBadTarget)
			return
		}
		if !ch.stack.push(stackFrame{ret: ch.pc, loop: ch.loop}) {
			p.halt(ch, ins, ErrStackOverflow)
			return
		}
		ch.loop = -1
		ch.pc = ins.Target

	case InstrReturn:
		frame, ok := ch.stack.pop()
		if !ok {
			p.halt(ch, ins, ErrStackUnderflow)
			return
		}
		ch.pc = frame.ret
		ch.loop = frame.loop

	case InstrJump:
		if !p.stream.validAddr(ins.Target) {
			p.halt(ch, ins, ErrBadTarget)
			return
		}
		ch.pc = ins.Target

	case InstrLoop:
		if !p.stream.validAddr(ins.Target) {
			p.halt(ch, ins, ErrBadTarget)
			return
		}
		if ch.loop < 0 {
			ch.loop = ins.Count
		}
		if ch.loop > 0 {
			ch.loop--
			ch.pc = ins.Target
		} else {
			ch.loop = -1
		}

	case InstrRate:
		p.rate = ins.Rate

	case InstrHalt:
		p.log.Debug("command stream channel finished", slog.Int("channel", ch.id))
		ch.pc = 0

	case InstrNop:
		// Nothing to do.
	}
}

func (p *Player) execCommand(ch *channel, c chipseq.Command) {
	c.Channel = ch.id
	if c.Kind.IsHint() {
		ch.applyHint(c)
		return
	}
	ch.applyCommand(c)
	p.dispatcher.Dispatch(c)
}

// postProcess runs the continuous effects set up by the hint instructions.
func (p *Player) postProcess(ch *channel) {
	if !ch.effectsActive() {
		return
	}

	ch.volume = ch.volSlide.Step(ch.volume, ch.volMax)
	if ch.tremoloDepth != 0 {
		ch.tremoloPos = tickfx.StepTremolo(ch.tremoloPos, ch.tremoloRate)
	}
	if ch.vibratoDepth != 0 {
		ch.vibratoPos = tickfx.StepVibrato(ch.vibratoPos, ch.vibratoRate)
	}
	if ch.porta.Active() && ch.keyOn {
		p.emit(ch, chipseq.CmdNotePorta, ch.porta.Speed, ch.porta.Target)
		if ch.porta.Step() {
			ch.note = ch.porta.Target
		}
	}
	if ch.arp != 0 && !ch.porta.Active() {
		if ch.arpYield {
			ch.arpYield = false
		} else {
			ch.arpTicks--
			if ch.arpTicks <= 0 {
				ch.arpTicks = ch.arpTime
				ch.arpStage = tickfx.NextArpStage(ch.arpStage)
			}
		}
	}
	switch {
	case ch.panSpeed != 0:
		ch.panL, ch.panR = tickfx.PanSlide(ch.panL, ch.panR, ch.panSpeed)
	case ch.panbrelloDepth != 0:
		ch.panbrelloPos = tickfx.StepPanbrello(ch.panbrelloPos, ch.panbrelloRate)
		ch.panL, ch.panR = tickfx.Panbrello(ch.panbrelloPos, ch.panbrelloDepth)
	}

	if ch.keyOn && !ch.porta.Active() && ch.note != chipseq.NoteNull {
		if note := tickfx.ArpNote(ch.note, ch.arp, ch.arpStage); note != ch.sentNote {
			p.emit(ch, chipseq.CmdLegato, note, 0)
			ch.sentNote = note
		}
	}
	if vol := tickfx.Tremolo(ch.volume, ch.tremoloPos, ch.tremoloDepth) >> 8; vol != ch.sentVolume {
		p.emit(ch, chipseq.CmdVolume, vol, 0)
		ch.sentVolume = vol
	}
	pitch := ch.pitch
	if ch.vibratoDepth != 0 {
		pitch += tickfx.VibratoOffset(ch.vibratoShape, ch.vibratoPos, ch.vibratoDepth, ch.vibratoFine)
	}
	if pitch != ch.sentPitch {
		p.emit(ch, chipseq.CmdPitch, pitch, 0)
		ch.sentPitch = pitch
	}
	if ch.panL != ch.sentPanL || ch.panR != ch.sentPanR {
		p.emit(ch, chipseq.CmdPanning, ch.panL, ch.panR)
		ch.sentPanL = ch.panL
		ch.sentPanR = ch.panR
	}
}

func (p *Player) emit(ch *channel, kind chipseq.CommandKind, arg0, arg1 int) {
	p.dispatcher.Dispatch(chipseq.Command{Kind: kind, Channel: ch.id, Arg0: arg0, Arg1: arg1})
}

func (p *Player) halt(ch *channel, ins Instruction, err error) {
	ch.pc = 0
	ch.err = err
	p.log.Error("command stream channel halted",
		slog.Int("channel", ch.id),
		slog.String("addr", fmt.Sprintf("%#x", ins.Addr)),
		slog.String("op", fmt.Sprintf("%#02x", ins.Op)),
		slog.Any("err", err),
		slog.Any("trace", ch.trace.entries()))
}

// touch marks the instruction bytes as executed on this tick.
func (p *Player) touch(ins Instruction) {
	now := uint16(p.curTick)
	for i := ins.Addr; i < ins.Addr+ins.Size; i++ {
		p.access[i] = now
	}
}

// accessMaxAge is the oldest age a timestamp can have after the decay pass.
const accessMaxAge = 0x4000

// decay clamps the age of a few timestamps every tick,
// so the 16-bit timestamp deltas never wrap around.
func (p *Player) decay() {
	if len(p.access) == 0 {
		return
	}
	now := uint16(p.curTick)
	for n := 0; n < 16; n++ {
		if p.decayPos >= len(p.access) {
			p.decayPos = 0
		}
		if now-p.access[p.decayPos] > accessMaxAge {
			p.access[p.decayPos] = now - accessMaxAge
		}
		p.decayPos++
	}
}

// ChannelState is a read-only copy of the stream channel state.
type ChannelState struct {
	PC         int
	Halted     bool
	Err        error
	WaitTicks  int
	StackDepth int
	Note       int
	KeyOn      bool
	Volume     int
	Pitch      int
	PanL       int
	PanR       int
	Trace      []TraceEntry
}

// ChannelState returns a copy of the channel state.
func (p *Player) ChannelState(i int) ChannelState {
	ch := &p.channels[i]
	return ChannelState{
		PC:         ch.pc,
		Halted:     ch.pc == 0,
		Err:        ch.err,
		WaitTicks:  ch.waitTicks,
		StackDepth: ch.stack.len,
		Note:       ch.note,
		KeyOn:      ch.keyOn,
		Volume:     ch.sentVolume,
		Pitch:      ch.sentPitch,
		PanL:       ch.sentPanL,
		PanR:       ch.sentPanR,
		Trace:      ch.trace.entries(),
	}
}
