package cstream

import (
	"testing"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/song"
)

func exportTestSong() *song.Song {
	s := song.New(2, 4)
	s.Speeds = []int{2}
	rows := s.Pattern(0, 0).Rows
	rows[0].Note = 60
	rows[2].Note = 64
	s.Pattern(1, 0).Rows[1].Note = 48
	return s
}

func TestExportLoop(t *testing.T) {
	s := exportTestSong()
	data, err := Export(s, ExportConfig{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	stream, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	want := &chipseq.Recorder{}
	scheduler := chipseq.NewPlayer(chipseq.Config{Dispatcher: want, Logger: quietLogger()})
	if err := scheduler.Load(s); err != nil {
		t.Fatal(err)
	}
	scheduler.Play()
	for tick := 0; tick < 40; tick++ {
		want.Tick = tick
		scheduler.Tick()
	}

	p, have := newTestPlayer(stream)
	active := runTicks(p, have, 40)
	for tick := 0; tick < 40; tick++ {
		if !active[tick] {
			t.Fatalf("tick %d: looping stream has stopped", tick)
		}
		w := formatCommands(want.At(tick))
		h := formatCommands(have.At(tick))
		if w != h {
			t.Fatalf("tick %d commands:\nhave: %s\nwant: %s", tick, h, w)
		}
	}
	if p.Rate() != 60 {
		t.Fatalf("stream rate: have %v, want 60", p.Rate())
	}

	var last Instruction
	Disassemble(stream, 1, func(ins Instruction) bool {
		last = ins
		return true
	})
	if last.Kind != InstrJump {
		t.Fatalf("looping program ends with %s", last)
	}
}

func TestExportStop(t *testing.T) {
	s := song.New(1, 4)
	s.Speeds = []int{2}
	rows := s.Pattern(0, 0).Rows
	rows[0].Note = 60
	rows[1].Effects = []song.Effect{{Code: 0xff, Value: 0}}

	data, err := Export(s, ExportConfig{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	stream, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	p, rec := newTestPlayer(stream)
	active := runTicks(p, rec, 4)
	checkCommands(t, rec, 0, "note_on(0: 60)")
	checkCommands(t, rec, 1, "")
	checkCommands(t, rec, 2, "note_off(0)")
	if !active[1] || active[2] || active[3] {
		t.Fatalf("active ticks: %v", active)
	}
}

func TestExportErrors(t *testing.T) {
	s := song.New(1, 4)
	s.Orders = nil
	if _, err := Export(s, ExportConfig{Logger: quietLogger()}); err == nil {
		t.Fatal("a song without orders was exported")
	}

	s = song.New(0, 4)
	if _, err := Export(s, ExportConfig{Logger: quietLogger()}); err == nil {
		t.Fatal("a song without channels was exported")
	}
}
