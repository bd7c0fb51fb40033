package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/cstream"
	"github.com/quasilyte/chipseq/song"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) Dispatch(c chipseq.Command) int {
	l.mu.Lock()
	l.events = append(l.events, "cmd "+c.String())
	l.mu.Unlock()
	return 0
}

func (l *eventLog) Acquire(frames int) {
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf("acquire %d", frames))
	l.mu.Unlock()
}

// take returns the recorded events and clears the log.
func (l *eventLog) take() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := strings.Join(l.events, "; ")
	l.events = l.events[:0]
	return s
}

func newTestEngine() (*Engine, *eventLog) {
	log := &eventLog{}
	e := New(Config{
		SampleRate: 600,
		Dispatcher: log,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return e, log
}

func newTestSong() *song.Song {
	s := song.New(1, 4)
	s.Speeds = []int{1}
	s.Pattern(0, 0).Rows[0].Note = 60
	return s
}

func checkEvents(t *testing.T, log *eventLog, want string) {
	t.Helper()
	if have := log.take(); have != want {
		t.Fatalf("events:\nhave: %s\nwant: %s", have, want)
	}
}

func TestIdle(t *testing.T) {
	e, log := newTestEngine()
	e.NextBuffer(100)
	checkEvents(t, log, "acquire 100")
}

func TestSongBufferSplit(t *testing.T) {
	e, log := newTestEngine()
	if err := e.LoadSong(newTestSong()); err != nil {
		t.Fatal(err)
	}
	if !e.Play() {
		t.Fatal("play failed")
	}
	e.NextBuffer(25)
	checkEvents(t, log, "cmd note_on(0: 60); acquire 10; acquire 10; acquire 5")
	e.NextBuffer(10)
	checkEvents(t, log, "acquire 5; acquire 5")

	if snap := e.Snapshot(); !snap.Playing || snap.TotalTicks != 4 {
		t.Fatalf("snapshot: %+v", snap)
	}

	e.Stop()
	checkEvents(t, log, "cmd note_off(0)")
	e.NextBuffer(10)
	checkEvents(t, log, "acquire 10")
}

func buildStream(t *testing.T, programs ...*cstream.Program) []byte {
	t.Helper()
	data, err := (&cstream.Builder{Programs: programs}).Build()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestStream(t *testing.T) {
	e, log := newTestEngine()
	prog := &cstream.Program{}
	prog.Command(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 5})
	prog.Wait(2)
	prog.Command(chipseq.Command{Kind: chipseq.CmdNoteOff})
	if err := e.PlayStream(buildStream(t, prog)); err != nil {
		t.Fatal(err)
	}
	if !e.Streaming() {
		t.Fatal("stream is not playing")
	}
	if e.PreviewNote(0, song.None, 60) {
		t.Fatal("note preview is allowed during the stream playback")
	}

	e.NextBuffer(50)
	checkEvents(t, log, "cmd note_on(0: 5); acquire 10; acquire 10; cmd note_off(0); acquire 10; acquire 20")
	if state, ok := e.StreamState(0); !ok || !state.Halted || state.Err != nil {
		t.Fatalf("stream state: %+v (ok=%v)", state, ok)
	}

	e.NextBuffer(10)
	checkEvents(t, log, "acquire 10")
	if e.Streaming() {
		t.Fatal("finished stream was not dropped")
	}
}

func TestStreamRate(t *testing.T) {
	e, log := newTestEngine()
	prog := &cstream.Program{}
	prog.SetRate(30)
	prog.Command(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 0})
	prog.Wait(100)
	if err := e.PlayStream(buildStream(t, prog)); err != nil {
		t.Fatal(err)
	}
	e.NextBuffer(40)
	checkEvents(t, log, "cmd note_on(0: 0); acquire 20; acquire 20")
}

func TestKillStream(t *testing.T) {
	e, log := newTestEngine()
	if err := e.LoadSong(newTestSong()); err != nil {
		t.Fatal(err)
	}

	prog := &cstream.Program{}
	prog.Command(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 1})
	prog.Wait(1000)
	if err := e.PlayStream(buildStream(t, prog, prog)); err != nil {
		t.Fatal(err)
	}
	e.NextBuffer(5)
	checkEvents(t, log, "cmd note_on(0: 1); cmd note_on(1: 1); acquire 5")

	e.KillStream()
	checkEvents(t, log, "cmd note_off(0); cmd note_off(1)")
	if e.Streaming() {
		t.Fatal("stream is still playing")
	}

	if err := e.PlayStream(buildStream(t, prog)); err != nil {
		t.Fatal(err)
	}
	if !e.Play() {
		t.Fatal("play failed")
	}
	checkEvents(t, log, "cmd note_off(0)")
	if e.Streaming() {
		t.Fatal("Play did not kill the stream")
	}
	e.NextBuffer(10)
	checkEvents(t, log, "cmd note_on(0: 60); acquire 10")
}

func TestPlayStreamError(t *testing.T) {
	e, _ := newTestEngine()
	err := e.PlayStream([]byte("CSTR"))
	var parseErr *cstream.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Streaming() {
		t.Fatal("broken stream is playing")
	}
}

func TestEditAndSave(t *testing.T) {
	e, log := newTestEngine()
	if err := e.Edit(func(*song.Song) {}); !errors.Is(err, chipseq.ErrNotLoaded) {
		t.Fatalf("edit without a song: %v", err)
	}
	if _, err := e.Export(cstream.ExportConfig{}); !errors.Is(err, chipseq.ErrNotLoaded) {
		t.Fatalf("export without a song: %v", err)
	}

	if err := e.LoadSong(newTestSong()); err != nil {
		t.Fatal(err)
	}
	err := e.Edit(func(s *song.Song) {
		s.Pattern(0, 0).Rows[0].Note = 62
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Play()
	e.NextBuffer(10)
	checkEvents(t, log, "cmd note_on(0: 62); acquire 10")

	var note int
	err = e.SaveEdit(func(s *song.Song) error {
		note = s.Pattern(0, 0).Rows[0].Note
		return nil
	})
	if err != nil || note != 62 {
		t.Fatalf("save: note=%d err=%v", note, err)
	}

	data, err := e.Export(cstream.ExportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cstream.Parse(data); err != nil {
		t.Fatalf("exported stream: %v", err)
	}
	if !e.Snapshot().Playing {
		t.Fatal("export interrupted the playback")
	}
}

func TestConcurrentAccess(t *testing.T) {
	e, _ := newTestEngine()
	if err := e.LoadSong(newTestSong()); err != nil {
		t.Fatal(err)
	}
	e.Play()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.NextBuffer(64)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = e.Snapshot()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			e.Edit(func(s *song.Song) {
				s.Pattern(0, 0).Rows[1].Note = 48 + i
			})
			e.SaveEdit(func(s *song.Song) error { return nil })
		}
	}()
	wg.Wait()

	if snap := e.Snapshot(); snap.TotalTicks == 0 {
		t.Fatal("no ticks were played")
	}
}
