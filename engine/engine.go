// Package engine ties the song scheduler and the command stream player
// to a single audio callback.
//
// Every Engine method except Snapshot and Streaming takes the busy guard,
// so the host can call them from any goroutine while the audio thread
// keeps calling NextBuffer. Song saving and exporting take a separate
// save guard and never block the audio thread.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/cstream"
	"github.com/quasilyte/chipseq/song"
)

// Config configures an Engine.
type Config struct {
	// SampleRate is the output sample rate.
	//
	// A zero value will assume a sample rate of 44100.
	SampleRate int

	// Dispatcher receives the commands of both producers.
	// If it implements chipseq.Acquirer, it is asked to render the
	// samples between two ticks.
	//
	// A nil value discards the commands.
	Dispatcher chipseq.Dispatcher

	// A nil value means slog.Default().
	Logger *slog.Logger

	// Loops is the number of times the song is played before it stops.
	//
	// A zero value means "loop forever".
	Loops int

	// DefaultVolumeMax is used when the dispatcher does not implement chipseq.VolumeMaxer.
	//
	// A zero value means 127.
	DefaultVolumeMax int
}

// Engine is the host-facing side of the playback core.
type Engine struct {
	busy sync.Mutex
	save sync.Mutex

	config     Config
	log        *slog.Logger
	dispatcher chipseq.Dispatcher
	acquirer   chipseq.Acquirer

	song   *song.Song
	player *chipseq.Player

	stream      *cstream.Player
	streamClock chipseq.Clock
	streamHz    float64
	streamDone  bool
	streaming   atomic.Bool

	// pending is the number of frames left until the next tick.
	pending int
}

// New creates an Engine without a song.
func New(config Config) *Engine {
	applyConfigDefaults(&config)
	e := &Engine{
		config:     config,
		log:        config.Logger,
		dispatcher: config.Dispatcher,
	}
	e.acquirer, _ = config.Dispatcher.(chipseq.Acquirer)
	e.player = chipseq.NewPlayer(chipseq.Config{
		SampleRate:       config.SampleRate,
		Dispatcher:       config.Dispatcher,
		Logger:           config.Logger,
		Loops:            config.Loops,
		DefaultVolumeMax: config.DefaultVolumeMax,
	})
	return e
}

func applyConfigDefaults(config *Config) {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.Dispatcher == nil {
		config.Dispatcher = chipseq.DispatcherFunc(func(chipseq.Command) int { return 0 })
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DefaultVolumeMax <= 0 {
		config.DefaultVolumeMax = 127
	}
}

// LoadSong replaces the current song.
// A running command stream keeps playing.
//
// The song must not be modified outside of Edit afterwards.
func (e *Engine) LoadSong(s *song.Song) error {
	e.save.Lock()
	defer e.save.Unlock()
	e.busy.Lock()
	defer e.busy.Unlock()

	if err := e.player.Load(s); err != nil {
		return err
	}
	e.song = s
	if !e.streaming.Load() {
		e.pending = 0
	}
	e.log.Info("song loaded",
		slog.String("name", s.Name),
		slog.Int("channels", len(s.Channels)),
		slog.Int("orders", len(s.Orders)))
	return nil
}

// Edit runs fn with exclusive access to the song and reloads it afterwards.
// The playback position is kept when it still exists.
func (e *Engine) Edit(fn func(s *song.Song)) error {
	e.save.Lock()
	defer e.save.Unlock()
	e.busy.Lock()
	defer e.busy.Unlock()

	if e.song == nil {
		return chipseq.ErrNotLoaded
	}
	fn(e.song)
	return e.player.Reload(e.song)
}

// SaveEdit gives fn read access to the song.
//
// It only excludes Edit and other savers; the audio thread keeps running.
func (e *Engine) SaveEdit(fn func(s *song.Song) error) error {
	e.save.Lock()
	defer e.save.Unlock()

	if e.song == nil {
		return chipseq.ErrNotLoaded
	}
	return fn(e.song)
}

// Export renders the current song into a command stream.
// See cstream.Export.
func (e *Engine) Export(config cstream.ExportConfig) ([]byte, error) {
	e.save.Lock()
	defer e.save.Unlock()

	if e.song == nil {
		return nil, chipseq.ErrNotLoaded
	}
	if config.Logger == nil {
		config.Logger = e.log
	}
	if config.DefaultVolumeMax == 0 {
		config.DefaultVolumeMax = e.config.DefaultVolumeMax
	}
	return cstream.Export(e.song, config)
}

// Play starts the song from the beginning.
// A running command stream is killed.
func (e *Engine) Play() bool {
	e.busy.Lock()
	defer e.busy.Unlock()

	e.killStream()
	e.pending = 0
	return e.player.Play()
}

// Stop stops whatever is playing.
func (e *Engine) Stop() {
	e.busy.Lock()
	defer e.busy.Unlock()

	e.killStream()
	e.player.Stop()
	e.pending = 0
}

// SeekTo moves the song playback to the given position.
// See chipseq.Player.SeekTo.
func (e *Engine) SeekTo(order, row int, preserveDrift bool) bool {
	e.busy.Lock()
	defer e.busy.Unlock()

	e.killStream()
	e.pending = 0
	return e.player.SeekTo(order, row, preserveDrift)
}

// PreviewNote plays a note on a song channel.
// See chipseq.Player.PreviewNote.
func (e *Engine) PreviewNote(channel, ins, note int) bool {
	e.busy.Lock()
	defer e.busy.Unlock()

	if e.streaming.Load() {
		return false
	}
	return e.player.PreviewNote(channel, ins, note)
}

func (e *Engine) PreviewNoteOff(channel int) {
	e.busy.Lock()
	defer e.busy.Unlock()

	e.player.PreviewNoteOff(channel)
}

// PlayStream starts a command stream.
// The song playback is stopped; the stream replaces it until it ends
// or until KillStream is called.
func (e *Engine) PlayStream(data []byte) error {
	s, err := cstream.Parse(data)
	if err != nil {
		return err
	}

	e.busy.Lock()
	defer e.busy.Unlock()

	e.killStream()
	e.player.Stop()
	e.stream = cstream.NewStreamPlayer(s, cstream.Config{
		Dispatcher:       e.dispatcher,
		Logger:           e.log,
		DefaultVolumeMax: e.config.DefaultVolumeMax,
	})
	hz := 60.0
	if e.song != nil && e.song.Hz > 0 {
		hz = e.song.Hz
	}
	e.streamClock = chipseq.NewClock(e.config.SampleRate, hz)
	e.streamHz = 0
	e.streamDone = false
	e.streaming.Store(true)
	e.pending = 0
	e.log.Info("command stream started",
		slog.Int("channels", s.NumChannels),
		slog.Int("size", len(data)))
	return nil
}

// KillStream stops the command stream and releases its notes.
func (e *Engine) KillStream() {
	e.busy.Lock()
	defer e.busy.Unlock()

	e.killStream()
}

func (e *Engine) killStream() {
	if e.stream == nil {
		return
	}
	for ch := 0; ch < e.stream.NumChannels(); ch++ {
		e.dispatcher.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOff, Channel: ch})
	}
	e.dropStream()
}

func (e *Engine) dropStream() {
	e.stream = nil
	e.streamDone = false
	e.streaming.Store(false)
	e.pending = 0
}

// Streaming reports whether a command stream is being played.
// It is safe to call concurrently.
func (e *Engine) Streaming() bool { return e.streaming.Load() }

// Snapshot returns the last published song playback state.
// It is safe to call concurrently and never blocks on the audio thread.
func (e *Engine) Snapshot() chipseq.Snapshot {
	return e.player.Snapshot()
}

// StreamState returns a copy of a command stream channel state.
// It reports false if no stream is playing.
func (e *Engine) StreamState(channel int) (cstream.ChannelState, bool) {
	e.busy.Lock()
	defer e.busy.Unlock()

	if e.stream == nil || channel < 0 || channel >= e.stream.NumChannels() {
		return cstream.ChannelState{}, false
	}
	return e.stream.ChannelState(channel), true
}
