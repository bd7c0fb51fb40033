package chipseq

import (
	"log/slog"
)

// SeekTo starts the playback from the given position.
//
// The rows before the target are played silently to restore
// the channel state, which is then sent to the dispatcher.
// The clock drift is restored to its pre-seek value unless preserveDrift is set.
//
// A position that does not exist or can't be reached without looping
// stops the playback; false is returned in that case.
func (p *Player) SeekTo(order, row int, preserveDrift bool) bool {
	if !p.loaded {
		return false
	}
	if order < 0 || order >= p.module.numOrders || row < 0 || row >= p.module.patternLength {
		p.log.Debug("seek target is out of range", slog.Int("order", order), slog.Int("row", row))
		p.Stop()
		return false
	}

	saved := p.clock.Save()
	if p.playing || p.freelance {
		p.stop()
		p.flush()
	}
	p.rewind()
	p.playing = true

	if !p.fastForward(order, row) {
		p.silent = false
		p.log.Debug("seek target is unreachable", slog.Int("order", order), slog.Int("row", row))
		p.Stop()
		return false
	}

	p.ticks = 1
	p.subTicks = 1
	p.tempoAccum = max(0, p.module.virtualTempoD-p.module.virtualTempoN)
	p.walked.Clear()
	p.loopsLeft = p.settings.loops
	p.loopCount = 0
	if !preserveDrift {
		p.clock.Restore(saved)
	}

	p.resync()
	p.publishSnapshot()
	return true
}

func (p *Player) fastForward(order, row int) bool {
	p.silent = true
	defer func() { p.silent = false }()

	rowsLeft := p.module.numOrders*p.module.patternLength + 1
	for p.order != order || p.row != row {
		outcome := p.Tick()
		switch outcome {
		case TickLooped, TickStopped:
			return false
		case TickRowAdvanced, TickOrderAdvanced:
			rowsLeft--
			if rowsLeft <= 0 {
				return false
			}
		}
	}
	return true
}

// resync sends the restored channel state to the dispatcher.
func (p *Player) resync() {
	for i := range p.channels {
		ch := &p.channels[i]
		if ch.ins != -1 {
			ch.emit(CmdInstrument, ch.ins, 0)
		}
		ch.emit(CmdVolume, ch.sentVolume, 0)
		ch.emit(CmdPanning, ch.sentPanL, ch.sentPanR)
		if ch.sentPitch != 0 {
			ch.emit(CmdPitch, ch.sentPitch, 0)
		}
	}
	p.flush()
}
