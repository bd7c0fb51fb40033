package chipseq

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quasilyte/chipseq/song"
)

// Player schedules song rows and effects tick by tick and
// turns them into Commands for the Dispatcher.
//
// Player is not safe for concurrent use, with the exception of Snapshot.
// Hosts that drive it from an audio callback should use the engine package.
type Player struct {
	module module
	loaded bool

	dispatcher Dispatcher
	log        *slog.Logger
	settings   playerSettings

	clock           Clock
	lastTickSamples int
	elapsedSamples  int64
	totalTicks      int64

	playing   bool
	freelance bool
	silent    bool

	// The next row to be played.
	order int
	row   int

	// The last played row.
	prevOrder int
	prevRow   int
	hasPrev   bool

	// The order of the last executed row.
	playedOrder int

	ticks      int // ticks left until the next row
	subTicks   int
	tempoAccum int
	speeds     []int
	speedIndex int
	speedBuf   [1]int
	arpSpeed   int
	loopsLeft  int
	loopCount  int

	walked walkedSet

	// Row-level requests, resolved after all channels processed the row.
	jumps         []jumpRequest
	stopRequested bool

	channels []channelState

	snapMu sync.Mutex
	snap   Snapshot
}

type playerSettings struct {
	sampleRate       int
	loops            int
	tickMult         int
	defaultVolumeMax int
}

type jumpKind uint8

const (
	jumpNone jumpKind = iota
	jumpOrder
	jumpBreak
)

type jumpRequest struct {
	kind jumpKind
	arg  int
}

// TickOutcome describes what happened during a Tick call.
type TickOutcome uint8

const (
	// TickContinue means the current row keeps playing.
	TickContinue TickOutcome = iota

	// TickRowAdvanced means a new row of the same order started.
	TickRowAdvanced

	// TickOrderAdvanced means a row of another order started.
	TickOrderAdvanced

	// TickLooped means the song reached a row it already played.
	// The row itself is played on the next tick.
	TickLooped

	// TickStopped means the player is not playing.
	TickStopped
)

func (o TickOutcome) String() string {
	switch o {
	case TickContinue:
		return "continue"
	case TickRowAdvanced:
		return "row-advanced"
	case TickOrderAdvanced:
		return "order-advanced"
	case TickLooped:
		return "looped"
	case TickStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures a Player.
type Config struct {
	// SampleRate is the output sample rate used to compute the tick lengths.
	//
	// A zero value will assume a sample rate of 44100.
	SampleRate int

	// Dispatcher receives the produced commands.
	//
	// A nil value discards them.
	Dispatcher Dispatcher

	// Logger is used for diagnostics.
	//
	// A nil value means slog.Default().
	Logger *slog.Logger

	// Loops is the number of times the song is played before it stops.
	//
	// A zero value means "loop forever".
	Loops int

	// TickMultiplier splits every song tick into several sub-ticks.
	// Rows and effects only advance on tick boundaries.
	//
	// A zero value means 1.
	TickMultiplier int

	// DefaultVolumeMax is the channel volume range used when the dispatcher
	// does not implement VolumeMaxer.
	//
	// A zero value means 127.
	DefaultVolumeMax int
}

// PlayerInfo contains the loaded song information.
type PlayerInfo struct {
	NumChannels   int
	NumOrders     int
	PatternLength int

	// MemoryUsage approximates the prepared song size in bytes.
	MemoryUsage uint
}

var ErrNotLoaded = errors.New("no song loaded")

// NewPlayer allocates a player.
// Use Load method to finish player initialization.
func NewPlayer(config Config) *Player {
	applyConfigDefaults(&config)
	p := &Player{
		dispatcher: config.Dispatcher,
		log:        config.Logger,
		settings: playerSettings{
			sampleRate:       config.SampleRate,
			loops:            config.Loops,
			tickMult:         config.TickMultiplier,
			defaultVolumeMax: config.DefaultVolumeMax,
		},
	}
	p.clock = NewClock(config.SampleRate, 60)
	return p
}

func applyConfigDefaults(config *Config) {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.Dispatcher == nil {
		config.Dispatcher = nopDispatcher{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Loops < 0 {
		config.Loops = 0
	}
	if config.TickMultiplier < 1 {
		config.TickMultiplier = 1
	}
	if config.DefaultVolumeMax <= 0 {
		config.DefaultVolumeMax = 127
	}
}

// Load prepares the song for playback.
// The player is stopped afterwards.
//
// The song is not copied; it must not be modified while it is loaded.
// Use Reload after modifying it.
func (p *Player) Load(s *song.Song) error {
	compiled, err := compileModule(s, p.log)
	if err != nil {
		return err
	}
	if p.playing {
		p.Stop()
	}
	p.module = compiled
	p.loaded = true
	p.allocChannels()
	p.rewind()
	return nil
}

// Reload replaces the song keeping the playback position when possible.
// A position that no longer exists stops the playback.
func (p *Player) Reload(s *song.Song) error {
	if !p.loaded {
		return p.Load(s)
	}
	compiled, err := compileModule(s, p.log)
	if err != nil {
		return err
	}
	if compiled.numChannels != p.module.numChannels {
		if p.playing {
			p.Stop()
		}
		p.module = compiled
		p.allocChannels()
		p.rewind()
		return nil
	}
	p.module = compiled
	p.walked.Reset(compiled.numOrders, compiled.patternLength)
	if p.playing && (p.order >= compiled.numOrders || p.row >= compiled.patternLength) {
		p.log.Info("playback position removed by the edit, stopping")
		p.Stop()
	}
	return nil
}

func (p *Player) allocChannels() {
	n := p.module.numChannels
	if cap(p.channels) < n {
		p.channels = make([]channelState, n)
	}
	p.channels = p.channels[:n]
	for i := range p.channels {
		p.channels[i].id = i
	}
}

func (p *Player) channelVolumeMax(i int) int {
	vm := p.settings.defaultVolumeMax
	if v, ok := p.dispatcher.(VolumeMaxer); ok {
		if n := v.VolumeMax(i); n > 0 {
			vm = n
		}
	}
	return (vm << 8) | 0xff
}

// rewind puts the player into the "ready to start" state.
func (p *Player) rewind() {
	p.playing = false
	p.freelance = false
	p.silent = false
	p.order = 0
	p.row = 0
	p.prevOrder = 0
	p.prevRow = 0
	p.hasPrev = false
	p.playedOrder = 0
	p.ticks = 1
	p.subTicks = 1
	p.tempoAccum = max(0, p.module.virtualTempoD-p.module.virtualTempoN)
	p.speeds = p.module.speeds
	p.speedIndex = 0
	p.arpSpeed = p.module.arpSpeed
	p.loopsLeft = p.settings.loops
	p.loopCount = 0
	p.jumps = p.jumps[:0]
	p.stopRequested = false
	p.lastTickSamples = 0
	p.elapsedSamples = 0
	p.totalTicks = 0

	p.clock = NewClock(p.settings.sampleRate, p.module.hz*float64(p.settings.tickMult))
	p.walked.Reset(p.module.numOrders, p.module.patternLength)

	for i := range p.channels {
		ch := &p.channels[i]
		ch.Reset(p.channelVolumeMax(i))
		ch.out = ch.out[:0]
	}
	p.publishSnapshot()
}

// Play starts the song from the beginning.
// It reports false if there is nothing to play.
func (p *Player) Play() bool {
	if !p.loaded {
		return false
	}
	if p.playing {
		p.Stop()
	}
	p.rewind()
	if p.module.numOrders == 0 {
		return false
	}
	p.playing = true
	p.publishSnapshot()
	return true
}

// Stop halts the playback.
// The active notes are cut right away.
func (p *Player) Stop() {
	if !p.loaded {
		return
	}
	p.stop()
	p.flush()
	p.publishSnapshot()
}

func (p *Player) stop() {
	for i := range p.channels {
		ch := &p.channels[i]
		if ch.keyOn || ch.macros.Bound() {
			ch.emit(CmdNoteOff, 0, 0)
		}
		ch.Reset(p.channelVolumeMax(i))
	}
	if p.playing {
		p.log.Info("playback stopped",
			slog.Int("order", p.prevOrder), slog.Int("row", p.prevRow), slog.Int("loops", p.loopCount))
	}
	p.playing = false
	p.freelance = false
	p.jumps = p.jumps[:0]
	p.stopRequested = false
}

func (p *Player) Playing() bool { return p.playing }

// Active reports whether Tick has anything to do:
// either the song is playing or a previewed note is sounding.
func (p *Player) Active() bool {
	return p.loaded && (p.playing || p.freelance)
}

// Position returns the last played row.
// Right after a TickLooped outcome it returns the loop point instead.
func (p *Player) Position() (order, row int) {
	return p.prevOrder, p.prevRow
}

// LastTickSamples returns the number of samples the last tick spans.
func (p *Player) LastTickSamples() int { return p.lastTickSamples }

// Clock returns the player tick clock.
func (p *Player) Clock() *Clock { return &p.clock }

// NumChannels returns the number of channels of the loaded song.
func (p *Player) NumChannels() int { return len(p.channels) }

// Channel returns a copy of the channel state.
func (p *Player) Channel(i int) ChannelState {
	return p.channels[i].State()
}

// Info returns the loaded song information.
func (p *Player) Info() PlayerInfo {
	return PlayerInfo{
		NumChannels:   p.module.numChannels,
		NumOrders:     p.module.numOrders,
		PatternLength: p.module.patternLength,
		MemoryUsage:   moduleSize(&p.module),
	}
}

// Tick runs a single tick.
func (p *Player) Tick() TickOutcome {
	if !p.loaded || (!p.playing && !p.freelance) {
		return TickStopped
	}

	p.lastTickSamples = p.clock.Next()
	p.elapsedSamples += int64(p.lastTickSamples)

	outcome := TickContinue
	if !p.playing {
		outcome = TickStopped
	}

	p.subTicks--
	boundary := p.subTicks <= 0
	if boundary {
		p.subTicks = p.settings.tickMult
		if p.playing {
			outcome = p.advanceSong()
		}
		if p.playing || p.freelance {
			for i := range p.channels {
				p.tickEffects(&p.channels[i])
			}
		}
	}

	for i := range p.channels {
		ch := &p.channels[i]
		ch.macros.Next(boundary)
	}
	for i := range p.channels {
		ch := &p.channels[i]
		p.foldMacros(ch)
		p.emitChanges(ch)
	}

	p.flush()
	p.totalTicks++
	if outcome != TickContinue || p.totalTicks%snapshotPeriod == 0 {
		p.publishSnapshot()
	}
	return outcome
}

func (p *Player) advanceSong() TickOutcome {
	outcome := TickContinue
	p.tempoAccum += p.module.virtualTempoN
	for p.tempoAccum >= p.module.virtualTempoD {
		p.tempoAccum -= p.module.virtualTempoD
		p.ticks--
		if p.ticks <= 0 {
			outcome = p.nextRow()
			break
		}
	}
	// At most one row is played per tick; the unused tempo is kept
	// within two ticks worth of it.
	if limit := p.module.virtualTempoD << 1; p.tempoAccum > limit {
		p.tempoAccum = limit
	}
	return outcome
}

// flush sends the buffered commands in channel order.
func (p *Player) flush() {
	for i := range p.channels {
		ch := &p.channels[i]
		if !p.silent {
			for _, c := range ch.out {
				p.dispatcher.Dispatch(c)
			}
		}
		ch.out = ch.out[:0]
	}
}

// Elapsed returns the playback time since the start.
func (p *Player) Elapsed() time.Duration {
	return samplesToDuration(p.elapsedSamples, p.settings.sampleRate)
}

func samplesToDuration(samples int64, sampleRate int) time.Duration {
	secs := samples / int64(sampleRate)
	rem := samples % int64(sampleRate)
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(sampleRate)
}
