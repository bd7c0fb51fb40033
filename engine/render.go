package engine

import (
	"log/slog"

	"github.com/quasilyte/chipseq"
)

// NextBuffer advances the playback by the given number of frames.
//
// The frames are split at tick boundaries: for every tick the producer
// dispatches its commands first, then the Acquirer renders the frames
// that belong to that tick. A tick can span several NextBuffer calls.
//
// Exactly one producer runs per call: the command stream if one is
// playing, the song scheduler otherwise.
func (e *Engine) NextBuffer(frames int) {
	e.busy.Lock()
	defer e.busy.Unlock()

	if e.stream != nil && e.streamDone && e.pending == 0 {
		e.log.Info("command stream finished", slog.Int("ticks", e.stream.CurTick()))
		e.dropStream()
	}

	for frames > 0 {
		if e.pending == 0 {
			var ok bool
			if e.stream != nil {
				ok = e.streamTick()
			} else {
				ok = e.songTick()
			}
			if !ok {
				e.acquire(frames)
				return
			}
		}
		n := min(frames, e.pending)
		e.acquire(n)
		e.pending -= n
		frames -= n
	}
}

func (e *Engine) acquire(frames int) {
	if e.acquirer != nil && frames > 0 {
		e.acquirer.Acquire(frames)
	}
}

func (e *Engine) songTick() bool {
	if !e.player.Active() {
		return false
	}
	if e.player.Tick() == chipseq.TickLooped {
		order, row := e.player.Position()
		e.log.Debug("song looped", slog.Int("order", order), slog.Int("row", row))
	}
	e.pending = e.player.LastTickSamples()
	return true
}

func (e *Engine) streamTick() bool {
	if e.streamDone {
		return false
	}
	active := e.stream.Tick()
	if hz := e.stream.Rate(); hz > 0 && hz != e.streamHz {
		e.streamHz = hz
		e.streamClock.SetRate(hz)
	}
	e.pending = e.streamClock.Next()
	if !active {
		e.streamDone = true
	}
	return true
}
