package chipseq

import (
	"time"
)

// snapshotPeriod is the number of ticks between two periodic snapshot updates.
// Position changes are always published right away.
const snapshotPeriod = 8

// Snapshot is a consistent view of the playback progress.
// It is meant for UI threads that can't touch the Player directly.
type Snapshot struct {
	// The next row to be played.
	Order int
	Row   int

	// The last played row.
	PrevOrder int
	PrevRow   int

	// Speed is the number of ticks of the current row.
	Speed int

	// Ticks is the number of ticks left until the next row.
	Ticks int

	TotalTicks int64
	Elapsed    time.Duration

	Playing bool

	// Loops counts how many times the song has looped.
	Loops int
}

// Snapshot returns the last published playback state.
//
// This is the only Player method that is safe to call concurrently.
func (p *Player) Snapshot() Snapshot {
	p.snapMu.Lock()
	s := p.snap
	p.snapMu.Unlock()
	return s
}

func (p *Player) publishSnapshot() {
	s := Snapshot{
		Order:      p.order,
		Row:        p.row,
		PrevOrder:  p.prevOrder,
		PrevRow:    p.prevRow,
		Ticks:      p.ticks,
		TotalTicks: p.totalTicks,
		Elapsed:    p.Elapsed(),
		Playing:    p.playing,
		Loops:      p.loopCount,
	}
	if n := len(p.speeds); n != 0 {
		s.Speed = p.speeds[(p.speedIndex+n-1)%n]
	}
	p.snapMu.Lock()
	p.snap = s
	p.snapMu.Unlock()
}
