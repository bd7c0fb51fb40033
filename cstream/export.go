package cstream

import (
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/song"
)

// ExportConfig configures Export.
type ExportConfig struct {
	// Logger receives the export progress messages.
	//
	// A nil value means slog.Default().
	Logger *slog.Logger

	// MaxTicks limits the rendering length of songs that never loop.
	//
	// A zero value means 1<<20.
	MaxTicks int

	// DefaultVolumeMax is passed to the scheduler.
	// It should match the volume range of the chip that will play the stream.
	DefaultVolumeMax int

	BigEndian bool
	Force32   bool
}

type exportEvent struct {
	tick   int
	rate   float64
	isRate bool
	cmd    chipseq.Command
}

// Export renders a song into a command stream.
//
// The song is played until it either loops or stops.
// A looping song produces programs that jump back to the loop point;
// a stopped song produces programs that halt.
func Export(s *song.Song, config ExportConfig) ([]byte, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxTicks <= 0 {
		config.MaxTicks = 1 << 20
	}

	rec := &chipseq.Recorder{}
	p := chipseq.NewPlayer(chipseq.Config{
		Dispatcher:       rec,
		Logger:           config.Logger,
		DefaultVolumeMax: config.DefaultVolumeMax,
	})
	if err := p.Load(s); err != nil {
		return nil, errors.Wrap(err, "load song")
	}
	if !p.Play() {
		return nil, errors.New("the song has no orders")
	}

	numChannels := p.NumChannels()
	patternLength := p.Info().PatternLength
	rowStart := make(map[int]int)

	rates := []exportEvent{{tick: 0, rate: p.Clock().Rate(), isRate: true}}
	rateBefore := func(tick int) float64 {
		i := sort.Search(len(rates), func(i int) bool { return rates[i].tick > tick })
		return rates[i-1].rate
	}

	loopTick := -1
	endTick := 0
	for tick := 0; ; tick++ {
		if tick >= config.MaxTicks {
			return nil, errors.Errorf("the song did not end in %d ticks", config.MaxTicks)
		}
		if hz := p.Clock().Rate(); hz != rates[len(rates)-1].rate {
			rates = append(rates, exportEvent{tick: tick, rate: hz, isRate: true})
		}
		rec.Tick = tick
		outcome := p.Tick()
		order, row := p.Position()
		key := order*patternLength + row

		if outcome == chipseq.TickLooped {
			start, ok := rowStart[key]
			if !ok {
				return nil, errors.Errorf("loop target %d:%d was never played", order, row)
			}
			// The loop point row is played on the tick after the loop is reported.
			loopTick = start
			endTick = tick + 1
			break
		}
		if outcome == chipseq.TickStopped {
			endTick = tick
			break
		}
		if _, ok := rowStart[key]; !ok {
			rowStart[key] = tick
		}
	}

	events := make([][]exportEvent, numChannels)
	for _, c := range rec.Commands {
		if loopTick >= 0 && c.Tick >= endTick {
			continue
		}
		events[c.Channel] = append(events[c.Channel], exportEvent{tick: c.Tick, cmd: c.Command})
	}
	if numChannels != 0 {
		rateEvents := rates
		if loopTick >= 0 {
			if r := rateBefore(loopTick); r != rateBefore(endTick) && !hasRateAt(rates, loopTick) {
				rateEvents = append(rateEvents, exportEvent{tick: loopTick, rate: r, isRate: true})
			}
		}
		merged := append(rateEvents[:len(rateEvents):len(rateEvents)], events[0]...)
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].tick < merged[j].tick })
		events[0] = merged
	}

	b := Builder{
		Programs:  make([]*Program, numChannels),
		BigEndian: config.BigEndian,
		Force32:   config.Force32,
	}
	for ch := range b.Programs {
		b.Programs[ch] = exportProgram(events[ch], loopTick, endTick)
	}
	data, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build stream")
	}

	config.Logger.Info("song exported",
		slog.String("song", s.Name),
		slog.Int("ticks", endTick),
		slog.Int("loop_tick", loopTick),
		slog.Int("size", len(data)))
	return data, nil
}

func hasRateAt(rates []exportEvent, tick int) bool {
	for _, e := range rates {
		if e.tick == tick {
			return true
		}
	}
	return false
}

func exportProgram(events []exportEvent, loopTick, endTick int) *Program {
	prog := &Program{}
	label := prog.NewLabel()
	cur := 0
	bound := loopTick < 0

	bindLoop := func() {
		prog.Wait(loopTick - cur)
		cur = loopTick
		prog.Bind(label)
		bound = true
	}

	for _, e := range events {
		if !bound && e.tick >= loopTick {
			bindLoop()
		}
		prog.Wait(e.tick - cur)
		cur = e.tick
		if e.isRate {
			prog.SetRate(e.rate)
		} else {
			prog.Command(e.cmd)
		}
	}

	if loopTick < 0 {
		prog.Halt()
		return prog
	}
	if !bound {
		bindLoop()
	}
	prog.Wait(endTick - cur)
	prog.Jump(label)
	return prog
}
