package chipseq

import (
	"github.com/quasilyte/chipseq/song"
)

// PreviewNote plays a note on the channel outside of the song.
//
// If the song is stopped, the player switches to a freelance mode:
// Tick keeps running the macros and the effects of the previewed
// channels (and reports TickStopped) until PreviewNoteOff releases
// the last of them.
//
// ins can be song.None to keep the current channel instrument.
func (p *Player) PreviewNote(channel, ins, note int) bool {
	if !p.loaded || channel < 0 || channel >= len(p.channels) {
		return false
	}
	if note < 0 || note > 179 {
		return false
	}
	ch := &p.channels[channel]
	if ins != song.None {
		p.setInstrument(ch, ins)
	}
	p.doNote(ch, note)
	if !p.playing {
		p.freelance = true
	}
	return true
}

// PreviewNoteOff stops a note started by PreviewNote.
func (p *Player) PreviewNoteOff(channel int) {
	if !p.loaded || channel < 0 || channel >= len(p.channels) {
		return
	}
	p.noteOff(&p.channels[channel])
	if p.playing {
		return
	}
	for i := range p.channels {
		if p.channels[i].keyOn {
			return
		}
	}
	p.freelance = false
	p.flush()
}
