package chipseq

import (
	"log/slog"

	"github.com/quasilyte/chipseq/internal/fxdb"
	"github.com/quasilyte/chipseq/song"
)

type moduleCompiler struct {
	result module
	log    *slog.Logger

	compiled map[*song.Pattern]*pattern
	empty    *pattern
}

func compileModule(s *song.Song, log *slog.Logger) (module, error) {
	if err := s.Validate(); err != nil {
		return module{}, err
	}
	c := &moduleCompiler{
		log:      log,
		compiled: make(map[*song.Pattern]*pattern),
	}
	c.compile(s)
	return c.result, nil
}

func (c *moduleCompiler) compile(s *song.Song) {
	c.result = module{
		numChannels:   len(s.Channels),
		patternLength: s.PatternLength,
		numOrders:     len(s.Orders),
		hz:            s.Hz,
		arpSpeed:      s.ArpSpeed,
		virtualTempoN: s.VirtualTempoN,
		virtualTempoD: s.VirtualTempoD,
		instruments:   s.Instruments,
		compat:        s.Compat,
	}
	if !(c.result.hz > 0) {
		c.result.hz = 60
	}
	if c.result.arpSpeed < 1 {
		c.result.arpSpeed = 1
	}
	if c.result.virtualTempoN < 1 || c.result.virtualTempoD < 1 {
		c.result.virtualTempoN = 1
		c.result.virtualTempoD = 1
	}

	c.result.speeds = compileGroove(s.Speeds)
	c.result.grooves = make([][]int, len(s.Grooves))
	for i, g := range s.Grooves {
		c.result.grooves[i] = compileGroove(g)
	}

	c.empty = &pattern{rows: make([]patternRow, s.PatternLength)}
	for i := range c.empty.rows {
		c.empty.rows[i] = patternRow{note: song.NoteNone, instrument: song.None, volume: song.None}
	}

	c.compileOrders(s)
}

func compileGroove(speeds []int) []int {
	if len(speeds) == 0 {
		return []int{6}
	}
	if len(speeds) > song.MaxGrooveLength {
		speeds = speeds[:song.MaxGrooveLength]
	}
	out := make([]int, len(speeds))
	for i, v := range speeds {
		out[i] = clamp(v, 1, 255)
	}
	return out
}

func (c *moduleCompiler) compileOrders(s *song.Song) {
	numChannels := len(s.Channels)
	c.result.orders = make([]*pattern, len(s.Orders)*numChannels)
	for order, row := range s.Orders {
		for ch := 0; ch < numChannels; ch++ {
			index := song.None
			if ch < len(row) {
				index = row[ch]
			}
			c.result.orders[order*numChannels+ch] = c.resolvePattern(s, order, ch, index)
		}
	}
}

func (c *moduleCompiler) resolvePattern(s *song.Song, order, ch, index int) *pattern {
	patterns := s.Channels[ch].Patterns
	if index < 0 || index >= len(patterns) || patterns[index] == nil {
		if index != song.None {
			c.log.Debug("missing pattern, playing silence",
				slog.Int("order", order), slog.Int("channel", ch), slog.Int("pattern", index))
		}
		return c.empty
	}
	src := patterns[index]
	if p, ok := c.compiled[src]; ok {
		return p
	}
	p := &pattern{rows: make([]patternRow, s.PatternLength)}
	for i := range p.rows {
		if i >= len(src.Rows) {
			p.rows[i] = c.empty.rows[i]
			continue
		}
		p.rows[i] = c.compileRow(&src.Rows[i])
	}
	c.compiled[src] = p
	return p
}

func (c *moduleCompiler) compileRow(r *song.Row) patternRow {
	row := patternRow{
		note:       r.Note,
		instrument: r.Instrument,
		volume:     r.Volume,
	}
	if row.note < song.MacroRelease || row.note > 179 {
		row.note = song.NoteNone
	}
	effects := r.Effects
	if len(effects) > song.MaxEffects {
		effects = effects[:song.MaxEffects]
	}
	for _, e := range effects {
		fx := fxdb.ConvertEffect(e.Code, e.Value)
		if fx.IsEmpty() {
			continue
		}
		row.effects = append(row.effects, fx)
	}
	return row
}
