package chipseq

import (
	"fmt"
	"strings"
	"testing"

	"github.com/quasilyte/chipseq/macro"
	"github.com/quasilyte/chipseq/song"
)

func newTestSong(numChannels, patternLength, numOrders int) *song.Song {
	s := song.New(numChannels, patternLength)
	s.Speeds = []int{1}
	s.Orders = make([][]int, numOrders)
	for i := range s.Orders {
		s.Orders[i] = make([]int, numChannels)
		for ch := range s.Orders[i] {
			s.Orders[i][ch] = i
			s.Pattern(ch, i)
		}
	}
	return s
}

func setRow(s *song.Song, order, ch, row int, r song.Row) {
	s.Pattern(ch, s.Orders[order][ch]).Rows[row] = r
}

func noteRow(note int, effects ...song.Effect) song.Row {
	r := song.EmptyRow()
	r.Note = note
	r.Effects = effects
	return r
}

func newTestPlayer(t *testing.T, s *song.Song, config Config) (*Player, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	config.Dispatcher = rec
	p := NewPlayer(config)
	if err := p.Load(s); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.Play() {
		t.Fatal("play failed")
	}
	return p, rec
}

// runTicks runs n ticks; the recorder ticks are 1-based.
func runTicks(p *Player, rec *Recorder, n int) []TickOutcome {
	out := make([]TickOutcome, n)
	for i := range out {
		rec.Tick++
		out[i] = p.Tick()
	}
	return out
}

func formatCommands(list []Command) string {
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func checkCommands(t *testing.T, rec *Recorder, tick int, want string) {
	t.Helper()
	have := formatCommands(rec.At(tick))
	if have != want {
		t.Fatalf("tick %d commands:\nhave: %s\nwant: %s", tick, have, want)
	}
}

func TestPlayerFirstTick(t *testing.T) {
	s := newTestSong(2, 4, 1)
	s.Speeds = []int{3}
	s.AddInstrument(&song.Instrument{Name: "lead"})
	r := noteRow(60)
	r.Instrument = 0
	setRow(s, 0, 0, 0, r)
	setRow(s, 0, 1, 0, noteRow(64))

	p, rec := newTestPlayer(t, s, Config{})
	outcomes := runTicks(p, rec, 7)

	checkCommands(t, rec, 1, "instrument(0: 0) note_on(0: 60) note_on(1: 64)")
	for tick := 2; tick <= 7; tick++ {
		checkCommands(t, rec, tick, "")
	}

	want := []TickOutcome{
		TickRowAdvanced, TickContinue, TickContinue,
		TickRowAdvanced, TickContinue, TickContinue,
		TickRowAdvanced,
	}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	if order, row := p.Position(); order != 0 || row != 2 {
		t.Fatalf("position: have (%d, %d), want (0, 2)", order, row)
	}
}

func TestPlayerLoop(t *testing.T) {
	tests := []struct {
		loops int
		want  []TickOutcome
	}{
		{
			loops: 1,
			want:  []TickOutcome{TickRowAdvanced, TickRowAdvanced, TickLooped, TickStopped},
		},
		{
			loops: 2,
			want: []TickOutcome{
				TickRowAdvanced, TickRowAdvanced, TickLooped,
				TickRowAdvanced, TickRowAdvanced, TickLooped, TickStopped,
			},
		},
		{
			loops: 0,
			want: []TickOutcome{
				TickRowAdvanced, TickRowAdvanced, TickLooped,
				TickRowAdvanced, TickRowAdvanced, TickLooped, TickRowAdvanced,
			},
		},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("loops=%d", test.loops), func(t *testing.T) {
			s := newTestSong(1, 2, 1)
			setRow(s, 0, 0, 0, noteRow(60))
			p, rec := newTestPlayer(t, s, Config{Loops: test.loops})
			have := runTicks(p, rec, len(test.want))
			if fmt.Sprint(have) != fmt.Sprint(test.want) {
				t.Fatalf("outcomes:\nhave: %v\nwant: %v", have, test.want)
			}
		})
	}
}

func TestPlayerLoopStopSkipsRow(t *testing.T) {
	s := newTestSong(1, 2, 1)
	setRow(s, 0, 0, 0, noteRow(60))
	p, rec := newTestPlayer(t, s, Config{Loops: 1})
	runTicks(p, rec, 3)

	checkCommands(t, rec, 1, "note_on(0: 60)")
	checkCommands(t, rec, 3, "note_off(0)")
	if p.Playing() {
		t.Fatal("player is still playing after the last loop")
	}
}

func TestPlayerJumpPolicy(t *testing.T) {
	tests := []struct {
		policy    song.JumpPolicy
		wantOrder int
		wantRow   int
	}{
		{song.JumpFirstWins, 2, 0},
		{song.JumpLastWins, 1, 3},
		{song.JumpOrderDependent, 2, 3},
	}

	for _, test := range tests {
		t.Run(test.policy.String(), func(t *testing.T) {
			s := newTestSong(2, 4, 3)
			s.Compat.JumpPolicy = test.policy
			setRow(s, 0, 0, 0, noteRow(song.NoteNone, song.Effect{Code: 0x0B, Value: 2}))
			setRow(s, 0, 1, 0, noteRow(song.NoteNone, song.Effect{Code: 0x0D, Value: 3}))

			p, rec := newTestPlayer(t, s, Config{})
			outcomes := runTicks(p, rec, 2)
			if outcomes[1] != TickOrderAdvanced {
				t.Fatalf("second tick: have %v, want %v", outcomes[1], TickOrderAdvanced)
			}
			order, row := p.Position()
			if order != test.wantOrder || row != test.wantRow {
				t.Fatalf("position: have (%d, %d), want (%d, %d)", order, row, test.wantOrder, test.wantRow)
			}
		})
	}
}

func TestPlayerJumpOutOfRange(t *testing.T) {
	s := newTestSong(1, 4, 2)
	setRow(s, 0, 0, 0, noteRow(song.NoteNone, song.Effect{Code: 0x0B, Value: 9}))
	setRow(s, 1, 0, 0, noteRow(song.NoteNone, song.Effect{Code: 0x0D, Value: 40}))
	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 1)
	if p.order != 0 || p.row != 0 {
		t.Fatalf("next position: have (%d, %d), want (0, 0)", p.order, p.row)
	}
}

func TestPlayerGroove(t *testing.T) {
	s := newTestSong(1, 8, 1)
	s.Speeds = []int{2, 1}
	p, rec := newTestPlayer(t, s, Config{})
	outcomes := runTicks(p, rec, 7)
	want := []TickOutcome{
		TickRowAdvanced, TickContinue, TickRowAdvanced,
		TickRowAdvanced, TickContinue, TickRowAdvanced,
		TickRowAdvanced,
	}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
}

func TestPlayerGrooveEffects(t *testing.T) {
	s := newTestSong(1, 8, 1)
	s.Grooves = [][]int{{1, 3}}
	setRow(s, 0, 0, 0, noteRow(song.NoteNone, song.Effect{Code: 0x0F, Value: 2}))
	setRow(s, 0, 0, 1, noteRow(song.NoteNone, song.Effect{Code: 0x09, Value: 0}))

	p, rec := newTestPlayer(t, s, Config{})
	outcomes := runTicks(p, rec, 8)
	want := []TickOutcome{
		TickRowAdvanced, TickContinue,
		TickRowAdvanced,
		TickRowAdvanced, TickContinue, TickContinue,
		TickRowAdvanced,
		TickRowAdvanced,
	}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	if snap := p.Snapshot(); snap.Speed != 3 {
		t.Fatalf("snapshot speed: have %d, want 3", snap.Speed)
	}
}

func TestPlayerVirtualTempo(t *testing.T) {
	s := newTestSong(1, 8, 1)
	s.VirtualTempoN = 1
	s.VirtualTempoD = 2
	p, rec := newTestPlayer(t, s, Config{})
	outcomes := runTicks(p, rec, 5)
	want := []TickOutcome{TickRowAdvanced, TickContinue, TickRowAdvanced, TickContinue, TickRowAdvanced}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
}

func TestPlayerFastVirtualTempo(t *testing.T) {
	for _, speed := range []int{1, 2} {
		t.Run(fmt.Sprintf("speed=%d", speed), func(t *testing.T) {
			s := newTestSong(1, 64, 1)
			s.Speeds = []int{speed}
			s.VirtualTempoN = 300
			s.VirtualTempoD = 150
			p, rec := newTestPlayer(t, s, Config{})
			for i, outcome := range runTicks(p, rec, 30) {
				if outcome != TickRowAdvanced {
					t.Fatalf("tick %d: have %v, want %v", i+1, outcome, TickRowAdvanced)
				}
				if p.tempoAccum > 2*s.VirtualTempoD {
					t.Fatalf("tick %d: tempo accumulator grew to %d", i+1, p.tempoAccum)
				}
			}
			if _, row := p.Position(); row != 29 {
				t.Fatalf("row: have %d, want 29", row)
			}
		})
	}
}

func TestPlayerTickMultiplier(t *testing.T) {
	s := newTestSong(1, 8, 1)
	var ins song.Instrument
	ins.Macros[macro.ParamWave] = macro.NewSequence(1, 2, 3)
	s.AddInstrument(&ins)
	r := noteRow(60)
	r.Instrument = 0
	setRow(s, 0, 0, 0, r)

	p, rec := newTestPlayer(t, s, Config{TickMultiplier: 2})
	outcomes := runTicks(p, rec, 4)
	want := []TickOutcome{TickRowAdvanced, TickContinue, TickRowAdvanced, TickContinue}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	checkCommands(t, rec, 1, "instrument(0: 0) note_on(0: 60) wave(0: 1)")
	checkCommands(t, rec, 2, "")
	checkCommands(t, rec, 3, "wave(0: 2)")
	if rate := p.Clock().Rate(); rate != 120 {
		t.Fatalf("clock rate: have %v, want 120", rate)
	}
}

func TestPlayerVolumeSlide(t *testing.T) {
	s := newTestSong(1, 4, 1)
	s.Speeds = []int{16}
	r := noteRow(60, song.Effect{Code: 0x0A, Value: 0x02})
	r.Volume = 64
	setRow(s, 0, 0, 0, r)

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 5)
	checkCommands(t, rec, 1, "note_on(0: 60) volume(0: 63)")
	checkCommands(t, rec, 2, "")
	checkCommands(t, rec, 3, "volume(0: 62)")
	checkCommands(t, rec, 4, "")
	checkCommands(t, rec, 5, "volume(0: 61)")
}

func TestPlayerMacroFolding(t *testing.T) {
	s := newTestSong(2, 4, 1)
	s.Speeds = []int{16}
	var ins song.Instrument
	ins.Macros[macro.ParamVol] = macro.NewSequence(100, 50)
	ins.Macros[macro.ParamDuty] = macro.NewSequence(1, 1, 2)
	s.AddInstrument(&ins)
	r := noteRow(60)
	r.Instrument = 0
	setRow(s, 0, 0, 0, r)
	setRow(s, 0, 1, 0, noteRow(40))

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 4)
	checkCommands(t, rec, 1, "instrument(0: 0) note_on(0: 60) duty(0: 1) volume(0: 100) note_on(1: 40)")
	checkCommands(t, rec, 2, "volume(0: 50)")
	checkCommands(t, rec, 3, "duty(0: 2)")
	checkCommands(t, rec, 4, "")
}

func TestPlayerArpeggio(t *testing.T) {
	s := newTestSong(1, 4, 1)
	s.Speeds = []int{16}
	setRow(s, 0, 0, 0, noteRow(48, song.Effect{Code: 0x00, Value: 0x47}))

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 4)
	checkCommands(t, rec, 1, "note_on(0: 48)")
	checkCommands(t, rec, 2, "legato(0: 52)")
	checkCommands(t, rec, 3, "legato(0: 55)")
	checkCommands(t, rec, 4, "legato(0: 48)")
}

func TestPlayerPortamento(t *testing.T) {
	s := newTestSong(1, 4, 1)
	s.Speeds = []int{4}
	setRow(s, 0, 0, 0, noteRow(48))
	setRow(s, 0, 0, 1, noteRow(50, song.Effect{Code: 0x03, Value: 0x40}))

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 7)
	checkCommands(t, rec, 5, "pre_porta(0: 1, 0) note_porta(0: 64, 50)")
	checkCommands(t, rec, 6, "note_porta(0: 64, 50) legato(0: 50)")
	checkCommands(t, rec, 7, "")
	if st := p.Channel(0); st.Note != 50 || st.PortaSpeed != 0 {
		t.Fatalf("channel state after the slide: %+v", st)
	}
}

func TestPlayerNoteDelay(t *testing.T) {
	s := newTestSong(1, 4, 1)
	s.Speeds = []int{4}
	setRow(s, 0, 0, 0, noteRow(60, song.Effect{Code: 0xED, Value: 2}))
	setRow(s, 0, 0, 1, noteRow(62, song.Effect{Code: 0xED, Value: 9}))

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 5)
	checkCommands(t, rec, 1, "")
	checkCommands(t, rec, 2, "")
	checkCommands(t, rec, 3, "note_on(0: 60)")
	// A delay longer than the row is ignored.
	checkCommands(t, rec, 5, "note_on(0: 62)")
}

func TestPlayerNoteCutAndRetrigger(t *testing.T) {
	s := newTestSong(1, 4, 1)
	s.Speeds = []int{8}
	setRow(s, 0, 0, 0, noteRow(60,
		song.Effect{Code: 0x0C, Value: 2},
		song.Effect{Code: 0xEC, Value: 5},
	))

	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 8)
	checkCommands(t, rec, 1, "note_on(0: 60)")
	checkCommands(t, rec, 3, fmt.Sprintf("note_on(0: %d)", NoteNull))
	checkCommands(t, rec, 5, fmt.Sprintf("note_on(0: %d)", NoteNull))
	checkCommands(t, rec, 6, "note_off(0)")
	checkCommands(t, rec, 7, "")
}

func TestPlayerStop(t *testing.T) {
	s := newTestSong(2, 4, 1)
	setRow(s, 0, 1, 0, noteRow(60))
	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 1)

	rec.Tick++
	p.Stop()
	checkCommands(t, rec, 2, "note_off(1)")
	if p.Tick() != TickStopped {
		t.Fatal("stopped player keeps ticking")
	}
	if snap := p.Snapshot(); snap.Playing {
		t.Fatal("snapshot still reports playing")
	}
}

func TestPlayerStopEffect(t *testing.T) {
	s := newTestSong(1, 4, 1)
	setRow(s, 0, 0, 0, noteRow(60))
	setRow(s, 0, 0, 1, noteRow(song.NoteNone, song.Effect{Code: 0xFF}))
	p, rec := newTestPlayer(t, s, Config{})
	outcomes := runTicks(p, rec, 3)
	want := []TickOutcome{TickRowAdvanced, TickStopped, TickStopped}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	checkCommands(t, rec, 2, "note_off(0)")
}

func TestPlayerSeek(t *testing.T) {
	s := newTestSong(2, 8, 1)
	s.AddInstrument(&song.Instrument{})
	r := noteRow(60)
	r.Instrument = 0
	r.Volume = 32
	setRow(s, 0, 0, 2, r)

	rec := &Recorder{}
	p := NewPlayer(Config{Dispatcher: rec})
	if err := p.Load(s); err != nil {
		t.Fatal(err)
	}
	if !p.SeekTo(0, 5, false) {
		t.Fatal("seek failed")
	}
	checkCommands(t, rec, 0,
		"instrument(0: 0) volume(0: 32) panning(0: 255, 255) volume(1: 127) panning(1: 255, 255)")
	if !p.Playing() {
		t.Fatal("player is not playing after the seek")
	}
	if st := p.Channel(0); !st.KeyOn || st.Note != 60 {
		t.Fatalf("restored channel state: %+v", st)
	}

	rec.Tick++
	if outcome := p.Tick(); outcome != TickRowAdvanced {
		t.Fatalf("first tick after the seek: %v", outcome)
	}
	if order, row := p.Position(); order != 0 || row != 5 {
		t.Fatalf("position: have (%d, %d), want (0, 5)", order, row)
	}
}

func TestPlayerSeekDrift(t *testing.T) {
	s := newTestSong(1, 8, 1)
	s.Hz = 61

	ref, refRec := newTestPlayer(t, s, Config{SampleRate: 44100})
	runTicks(ref, refRec, 5)
	fastForwardDrift := ref.Clock().Drift()

	p, rec := newTestPlayer(t, s, Config{SampleRate: 44100})
	runTicks(p, rec, 3)
	before := p.Clock().Drift()
	if before == fastForwardDrift {
		t.Fatalf("drift values must differ for this test: %v", before)
	}

	if !p.SeekTo(0, 5, false) {
		t.Fatal("seek failed")
	}
	if drift := p.Clock().Drift(); drift != before {
		t.Fatalf("restored drift: have %v, want %v", drift, before)
	}

	if !p.SeekTo(0, 5, true) {
		t.Fatal("seek failed")
	}
	if drift := p.Clock().Drift(); drift != fastForwardDrift {
		t.Fatalf("preserved drift: have %v, want %v", drift, fastForwardDrift)
	}
}

func TestPlayerSeekFailure(t *testing.T) {
	s := newTestSong(1, 4, 1)
	setRow(s, 0, 0, 1, noteRow(song.NoteNone, song.Effect{Code: 0x0B, Value: 0}))
	p, rec := newTestPlayer(t, s, Config{})
	runTicks(p, rec, 1)

	if p.SeekTo(1, 0, false) {
		t.Fatal("seek to a missing order succeeded")
	}
	if p.Playing() {
		t.Fatal("failed seek must stop the playback")
	}
	if p.SeekTo(0, 3, false) {
		t.Fatal("seek to an unreachable row succeeded")
	}
	if p.Playing() {
		t.Fatal("failed seek must stop the playback")
	}
	if !p.SeekTo(0, 1, true) {
		t.Fatal("seek to a reachable row failed")
	}
}

func TestPlayerPreview(t *testing.T) {
	s := newTestSong(2, 4, 1)
	rec := &Recorder{}
	p := NewPlayer(Config{Dispatcher: rec})
	if err := p.Load(s); err != nil {
		t.Fatal(err)
	}

	if !p.PreviewNote(1, song.None, 48) {
		t.Fatal("preview failed")
	}
	rec.Tick++
	if outcome := p.Tick(); outcome != TickStopped {
		t.Fatalf("preview tick: %v", outcome)
	}
	checkCommands(t, rec, 1, "note_on(1: 48)")

	rec.Tick++
	p.PreviewNoteOff(1)
	checkCommands(t, rec, 2, "note_off(1)")

	rec.Tick++
	p.Tick()
	checkCommands(t, rec, 3, "")

	if p.PreviewNote(5, song.None, 48) {
		t.Fatal("preview on a missing channel succeeded")
	}
}

func TestPlayerLoadErrors(t *testing.T) {
	p := NewPlayer(Config{})
	if p.Play() {
		t.Fatal("play without a song succeeded")
	}
	if p.Tick() != TickStopped {
		t.Fatal("tick without a song")
	}
	if err := p.Load(&song.Song{PatternLength: 4}); err != song.ErrNoChannels {
		t.Fatalf("load error: %v", err)
	}
}

func TestPlayerSnapshot(t *testing.T) {
	s := newTestSong(1, 4, 2)
	p, rec := newTestPlayer(t, s, Config{SampleRate: 6000})
	runTicks(p, rec, 5)
	snap := p.Snapshot()
	if snap.PrevOrder != 1 || snap.PrevRow != 0 || snap.Order != 1 || snap.Row != 1 {
		t.Fatalf("snapshot position: %+v", snap)
	}
	if snap.TotalTicks != 5 {
		t.Fatalf("snapshot ticks: have %d, want 5", snap.TotalTicks)
	}
	if snap.Elapsed.Milliseconds() != 83 {
		t.Fatalf("snapshot elapsed: have %v", snap.Elapsed)
	}
}

func TestPlayerSingleRowLoop(t *testing.T) {
	s := newTestSong(2, 1, 1)
	s.Speeds = []int{6}
	setRow(s, 0, 0, 0, noteRow(60))
	p, rec := newTestPlayer(t, s, Config{Loops: 1})

	outcomes := runTicks(p, rec, 7)
	want := []TickOutcome{
		TickRowAdvanced,
		TickContinue, TickContinue, TickContinue, TickContinue, TickContinue,
		TickLooped,
	}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	checkCommands(t, rec, 1, "note_on(0: 60)")
	for tick := 2; tick <= 6; tick++ {
		checkCommands(t, rec, tick, "")
	}
	checkCommands(t, rec, 7, "note_off(0)")
	if p.Playing() {
		t.Fatal("player is still playing after the last loop")
	}
}

func TestPlayerSingleRowLoopForever(t *testing.T) {
	s := newTestSong(2, 1, 1)
	s.Speeds = []int{6}
	setRow(s, 0, 0, 0, noteRow(60))
	p, rec := newTestPlayer(t, s, Config{})

	outcomes := runTicks(p, rec, 8)
	want := []TickOutcome{
		TickRowAdvanced,
		TickContinue, TickContinue, TickContinue, TickContinue, TickContinue,
		TickLooped,
		TickRowAdvanced,
	}
	if fmt.Sprint(outcomes) != fmt.Sprint(want) {
		t.Fatalf("outcomes:\nhave: %v\nwant: %v", outcomes, want)
	}
	checkCommands(t, rec, 1, "note_on(0: 60)")
	for tick := 2; tick <= 7; tick++ {
		checkCommands(t, rec, tick, "")
	}
	// The next pass starts with the loop point row.
	checkCommands(t, rec, 8, "note_on(0: 60)")
	if order, row := p.Position(); order != 0 || row != 0 {
		t.Fatalf("position: have (%d, %d), want (0, 0)", order, row)
	}
	if snap := p.Snapshot(); snap.Loops != 1 || !snap.Playing {
		t.Fatalf("snapshot: %+v", snap)
	}
}
