package chipseq

import (
	"log/slog"

	"github.com/quasilyte/chipseq/internal/fxdb"
	"github.com/quasilyte/chipseq/macro"
	"github.com/quasilyte/chipseq/song"
)

// nextRow executes the row at the current position and selects the next one.
//
// A row that was already played in this pass is not executed:
// the tick reports a loop and the row is played on the next tick
// (unless that was the last allowed loop).
func (p *Player) nextRow() TickOutcome {
	order, row := p.order, p.row

	if p.walked.Test(order, row) {
		p.walked.Clear()
		p.loopCount++
		p.prevOrder = order
		p.prevRow = row
		if p.loopsLeft > 0 {
			p.loopsLeft--
			if p.loopsLeft == 0 {
				p.log.Debug("loop limit reached", slog.Int("order", order), slog.Int("row", row))
				p.stop()
				return TickLooped
			}
		}
		p.ticks = 1
		return TickLooped
	}

	outcome := TickRowAdvanced
	if p.hasPrev && order != p.playedOrder {
		outcome = TickOrderAdvanced
	}
	p.walked.Set(order, row)
	p.prevOrder = order
	p.prevRow = row
	p.playedOrder = order
	p.hasPrev = true

	p.jumps = p.jumps[:0]
	p.stopRequested = false
	p.processGlobalEffects(order, row)
	for i := range p.channels {
		p.processChannelRow(&p.channels[i], p.module.row(order, row, i))
	}

	p.ticks = p.speeds[p.speedIndex]
	p.speedIndex = (p.speedIndex + 1) % len(p.speeds)

	if p.stopRequested {
		p.stop()
		return TickStopped
	}

	p.order, p.row = p.nextPosition(order, row)
	return outcome
}

// processGlobalEffects handles the effects that affect the whole song.
// They are applied even if the channel row itself is delayed.
func (p *Player) processGlobalEffects(order, row int) {
	for ch := 0; ch < p.module.numChannels; ch++ {
		r := p.module.row(order, row, ch)
		for _, e := range r.effects {
			switch e.Op {
			case fxdb.EffectSetGroove:
				if e.Arg >= len(p.module.grooves) {
					p.log.Debug("invalid groove index", slog.Int("groove", e.Arg))
					continue
				}
				p.speeds = p.module.grooves[e.Arg]
				p.speedIndex = 0
			case fxdb.EffectSetSpeed:
				if e.Arg > 0 {
					p.speedBuf[0] = e.Arg
					p.speeds = p.speedBuf[:]
					p.speedIndex = 0
				}
			case fxdb.EffectJump:
				p.jumps = append(p.jumps, jumpRequest{kind: jumpOrder, arg: e.Arg})
			case fxdb.EffectBreak:
				p.jumps = append(p.jumps, jumpRequest{kind: jumpBreak, arg: e.Arg})
			case fxdb.EffectSetTickRate:
				if e.Arg > 0 {
					p.clock.SetRate(float64(e.Arg * p.settings.tickMult))
				}
			case fxdb.EffectStopSong:
				p.stopRequested = true
			}
		}
	}
}

func (p *Player) nextPosition(order, row int) (int, int) {
	var nextOrder, nextRow int
	if len(p.jumps) == 0 {
		nextOrder, nextRow = order, row+1
		if nextRow >= p.module.patternLength {
			nextOrder++
			nextRow = 0
		}
	} else {
		nextOrder, nextRow = p.resolveJumps(order)
		if nextRow < 0 || nextRow >= p.module.patternLength {
			nextRow = 0
		}
	}
	if nextOrder < 0 || nextOrder >= p.module.numOrders {
		nextOrder = 0
	}
	return nextOrder, nextRow
}

func (p *Player) resolveJumps(order int) (int, int) {
	switch p.module.compat.JumpPolicy {
	case song.JumpFirstWins:
		return jumpTarget(order, p.jumps[0])
	case song.JumpLastWins:
		return jumpTarget(order, p.jumps[len(p.jumps)-1])
	default:
		nextOrder, nextRow := order+1, 0
		orderSet := false
		for _, j := range p.jumps {
			switch j.kind {
			case jumpOrder:
				nextOrder = j.arg
				nextRow = 0
				orderSet = true
			case jumpBreak:
				if !orderSet {
					nextOrder = order + 1
				}
				nextRow = j.arg
			}
		}
		return nextOrder, nextRow
	}
}

func jumpTarget(order int, j jumpRequest) (int, int) {
	if j.kind == jumpOrder {
		return j.arg, 0
	}
	return order + 1, j.arg
}

func (p *Player) processChannelRow(ch *channelState, r *patternRow) {
	if ch.delayed != nil {
		// The previous row delay did not fire before this row.
		delayed := ch.delayed
		ch.delayed = nil
		ch.rowDelay = 0
		p.playChannelRow(ch, delayed)
	}

	for _, e := range r.effects {
		if e.Op != fxdb.EffectNoteDelay || e.Arg == 0 {
			continue
		}
		speed := p.speeds[p.speedIndex]
		if e.Arg >= speed && !p.module.compat.DelayBehavior {
			continue
		}
		ch.rowDelay = e.Arg + 1
		ch.delayed = r
		return
	}

	p.playChannelRow(ch, r)
}

func (p *Player) playChannelRow(ch *channelState, r *patternRow) {
	portaRow := false
	for _, e := range r.effects {
		if e.Op == fxdb.EffectPortamento && e.Arg != 0 {
			portaRow = true
			break
		}
	}

	if r.instrument != song.None {
		p.setInstrument(ch, r.instrument)
	}

	switch r.note {
	case song.NoteNone:
		// Nothing to do.
	case song.NoteOff:
		p.noteOff(ch)
	case song.NoteRelease:
		if ch.keyOn || ch.macros.Bound() {
			ch.emit(CmdNoteOffEnv, 0, 0)
			ch.keyOn = false
			ch.porta.Speed = 0
			ch.macros.Release()
		}
	case song.MacroRelease:
		ch.emit(CmdEnvRelease, 0, 0)
		ch.macros.Release()
	default:
		switch {
		case portaRow && ch.keyOn:
			ch.emit(CmdPrePorta, 1, 0)
			ch.porta.Target = r.note
		case ch.legato && ch.keyOn:
			ch.note = r.note
			ch.porta.Set(r.note)
		default:
			p.doNote(ch, r.note)
		}
	}

	if r.volume != song.None {
		ch.volume = clamp(r.volume<<8, 0, ch.volMax)
	}

	for _, e := range r.effects {
		p.applyEffect(ch, e)
	}
}

func (p *Player) setInstrument(ch *channelState, ins int) {
	data := p.module.instrument(ins)
	if data == nil {
		p.log.Debug("invalid instrument", slog.Int("channel", ch.id), slog.Int("instrument", ins))
		return
	}
	if ins == ch.ins {
		return
	}
	ch.ins = ins
	ch.insData = data
	ch.emit(CmdInstrument, ins, 0)
	ch.macros.Init(nil, macro.Context{})
	ch.resetMacroOutputs()
}

func (p *Player) doNote(ch *channelState, note int) {
	ch.note = note
	ch.keyOn = true
	ch.porta.Set(note)
	ch.porta.Speed = 0
	ch.vibratoPos = 0
	ch.arpStage = 0
	ch.arpTicks = p.arpSpeed
	ch.arpYield = true

	var sources *macro.Table
	if ch.insData != nil {
		sources = &ch.insData.Macros
	}
	ch.macros.Init(sources, macro.Context{Linger: p.module.compat.VolMacroLinger})
	ch.resetMacroOutputs()

	ch.emit(CmdNoteOn, note, 0)
	ch.sentNote = note
}

func (p *Player) noteOff(ch *channelState) {
	if !ch.keyOn && !ch.macros.Bound() {
		return
	}
	ch.emit(CmdNoteOff, 0, 0)
	ch.keyOn = false
	ch.porta.Speed = 0
	ch.macros.Init(nil, macro.Context{})
}

func (p *Player) applyEffect(ch *channelState, e fxdb.Effect) {
	x := e.Arg >> 4
	y := e.Arg & 0xf

	switch e.Op {
	case fxdb.EffectArpeggio:
		ch.arp = e.Arg
		if e.Arg == 0 {
			ch.arpStage = 0
		}

	case fxdb.EffectPitchSlideUp, fxdb.EffectPitchSlideDown:
		if e.Arg == 0 || !ch.keyOn {
			ch.porta.Speed = 0
			break
		}
		ch.porta.Target = 179
		if e.Op == fxdb.EffectPitchSlideDown {
			ch.porta.Target = 0
		}
		ch.porta.Speed = e.Arg

	case fxdb.EffectPortamento:
		if !ch.keyOn {
			break
		}
		ch.porta.Speed = e.Arg

	case fxdb.EffectVibrato:
		ch.vibratoRate = x
		ch.vibratoDepth = y

	case fxdb.EffectTremolo:
		ch.tremoloRate = x
		ch.tremoloDepth = y

	case fxdb.EffectPanning:
		ch.panL = x * 17
		ch.panR = y * 17
		ch.panSpeed = 0
		ch.panbrelloDepth = 0

	case fxdb.EffectLinearPanning:
		ch.panL, ch.panR = linearPanning(e.Arg)
		ch.panSpeed = 0
		ch.panbrelloDepth = 0

	case fxdb.EffectPanSlide:
		switch {
		case x != 0:
			ch.panSpeed = x << 2
		default:
			ch.panSpeed = -(y << 2)
		}

	case fxdb.EffectPanbrello:
		ch.panbrelloRate = x
		ch.panbrelloDepth = y
		ch.panSpeed = 0

	case fxdb.EffectVolumeSlide:
		ch.volSlide.Target = -1
		switch {
		case x != 0:
			ch.volSlide.Speed = x * 64
		default:
			ch.volSlide.Speed = -y * 64
		}

	case fxdb.EffectRetrigger:
		ch.retrigSpeed = e.Arg
		ch.retrigTick = e.Arg + 1

	case fxdb.EffectArpSpeed:
		if e.Arg > 0 {
			p.arpSpeed = e.Arg
		}

	case fxdb.EffectNoteSlideUp, fxdb.EffectNoteSlideDown:
		if !ch.keyOn || x == 0 {
			break
		}
		target := ch.note + y
		if e.Op == fxdb.EffectNoteSlideDown {
			target = ch.note - y
		}
		ch.porta.Target = clamp(target, 0, 179)
		ch.porta.Speed = x * 4

	case fxdb.EffectVibratoShape:
		ch.vibratoShape = clampMax(e.Arg, 4)

	case fxdb.EffectVibratoRange:
		ch.vibratoFine = e.Arg

	case fxdb.EffectPitch:
		ch.pitch = e.Arg - 0x80

	case fxdb.EffectLegato:
		ch.legato = e.Arg != 0

	case fxdb.EffectNoteCut:
		ch.cut = e.Arg + 1

	case fxdb.EffectExternal:
		ch.emit(CmdExternal, e.Arg, 0)

	case fxdb.EffectMacroOff:
		ch.macros.Mask(macro.Param(e.Arg), true)
	case fxdb.EffectMacroOn:
		ch.macros.Mask(macro.Param(e.Arg), false)
	case fxdb.EffectMacroRestart:
		ch.macros.Restart(macro.Param(e.Arg))
	}
}

// linearPanning maps 0 (left) .. 0x80 (center) .. 0xff (right) to L/R levels.
func linearPanning(v int) (int, int) {
	switch {
	case v < 0x80:
		return 0xff, clampMin(0xff-(0x80-v)*2, 0)
	case v > 0x80:
		return clampMin(0xff-(v-0x80)*2, 0), 0xff
	default:
		return 0xff, 0xff
	}
}
