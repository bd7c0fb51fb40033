package chipseq

import (
	"github.com/quasilyte/chipseq/internal/fxdb"
	"github.com/quasilyte/chipseq/song"
)

// module is a song prepared for playback.
// All references are resolved; nothing here can go out of range.
type module struct {
	numChannels   int
	patternLength int
	numOrders     int

	// orders[order*numChannels+channel] is never nil.
	orders []*pattern

	speeds  []int
	grooves [][]int

	virtualTempoN int
	virtualTempoD int

	hz       float64
	arpSpeed int

	instruments []*song.Instrument
	compat      song.Compat
}

type pattern struct {
	rows []patternRow
}

type patternRow struct {
	note       int
	instrument int
	volume     int
	effects    []fxdb.Effect
}

func (m *module) pattern(order, ch int) *pattern {
	return m.orders[order*m.numChannels+ch]
}

func (m *module) row(order, row, ch int) *patternRow {
	return &m.pattern(order, ch).rows[row]
}

// instrument returns nil for out-of-range indices.
func (m *module) instrument(i int) *song.Instrument {
	if i < 0 || i >= len(m.instruments) {
		return nil
	}
	return m.instruments[i]
}
