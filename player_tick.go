package chipseq

import (
	"github.com/quasilyte/chipseq/internal/tickfx"
	"github.com/quasilyte/chipseq/macro"
)

// tickEffects runs the continuous effects of a channel for one song tick.
func (p *Player) tickEffects(ch *channelState) {
	if ch.rowDelay > 0 {
		ch.rowDelay--
		if ch.rowDelay == 0 && ch.delayed != nil {
			r := ch.delayed
			ch.delayed = nil
			p.playChannelRow(ch, r)
		}
	}

	if ch.retrigSpeed > 0 && ch.keyOn {
		ch.retrigTick--
		if ch.retrigTick <= 0 {
			ch.retrigTick = ch.retrigSpeed
			ch.emit(CmdNoteOn, NoteNull, 0)
		}
	}

	if ch.cut > 0 {
		ch.cut--
		if ch.cut == 0 {
			p.noteOff(ch)
		}
	}

	ch.volume = ch.volSlide.Step(ch.volume, ch.volMax)

	if ch.tremoloDepth != 0 {
		ch.tremoloPos = tickfx.StepTremolo(ch.tremoloPos, ch.tremoloRate)
	}
	if ch.vibratoDepth != 0 {
		ch.vibratoPos = tickfx.StepVibrato(ch.vibratoPos, ch.vibratoRate)
	}

	if ch.porta.Active() && ch.keyOn {
		ch.emit(CmdNotePorta, ch.porta.Speed, ch.porta.Target)
		if ch.porta.Step() {
			// Arrival is announced with a legato in emitChanges.
			ch.note = ch.porta.Target
		}
	}

	if ch.arp != 0 && !ch.porta.Active() {
		if ch.arpYield {
			ch.arpYield = false
		} else {
			ch.arpTicks--
			if ch.arpTicks <= 0 {
				ch.arpTicks = p.arpSpeed
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
}

// foldMacros combines the macro outputs with the channel state.
// Macros without a direct channel counterpart are emitted right away.
func (p *Player) foldMacros(ch *channelState) {
	it := &ch.macros
	if !it.Bound() {
		return
	}

	if m := it.Get(macro.ParamVol); m.Had() {
		ch.macroVol = m.Value()
	}
	if m := it.Get(macro.ParamArp); m.Had() {
		ch.arpFixed = m.Mode()&1 != 0
		ch.arpMacro = m.Value()
	}
	if m := it.Get(macro.ParamPitch); m.Had() {
		if m.Mode()&1 != 0 {
			ch.pitchMacro += m.Value()
		} else {
			ch.pitchMacro = m.Value()
		}
	}
	if m := it.Get(macro.ParamPanL); m.Had() {
		ch.macroPanL = clamp(m.Value(), 0, 0xff)
	}
	if m := it.Get(macro.ParamPanR); m.Had() {
		ch.macroPanR = clamp(m.Value(), 0, 0xff)
	}

	for param := macro.Param(0); param < macro.NumParams; param++ {
		switch param {
		case macro.ParamVol, macro.ParamArp, macro.ParamPitch, macro.ParamPanL, macro.ParamPanR:
			continue
		}
		m := it.Get(param)
		if !m.Had() {
			continue
		}
		val := m.Value()
		if param == macro.ParamPhaseReset {
			if val == 1 {
				ch.emit(CmdPhaseReset, 0, 0)
			}
			continue
		}
		if ch.paramsSent[param] == val {
			continue
		}
		ch.paramsSent[param] = val
		switch param {
		case macro.ParamDuty:
			ch.emit(CmdDuty, val, 0)
		case macro.ParamWave:
			ch.emit(CmdWave, val, 0)
		default:
			ch.emit(CmdMacroParam, int(param), val)
		}
	}
}

// emitChanges sends the parameters that differ from the last sent values.
func (p *Player) emitChanges(ch *channelState) {
	if ch.keyOn && !ch.porta.Active() {
		if note := ch.outputNote(); note != ch.sentNote {
			ch.emit(CmdLegato, note, 0)
			ch.sentNote = note
		}
	}
	if vol := ch.outputVolume(); vol != ch.sentVolume {
		ch.emit(CmdVolume, vol, 0)
		ch.sentVolume = vol
	}
	if pitch := ch.outputPitch(); pitch != ch.sentPitch {
		ch.emit(CmdPitch, pitch, 0)
		ch.sentPitch = pitch
	}
	if l, r := ch.outputPanning(); l != ch.sentPanL || r != ch.sentPanR {
		ch.emit(CmdPanning, l, r)
		ch.sentPanL = l
		ch.sentPanR = r
	}
}
