package main

import (
	"github.com/quasilyte/chipseq/macro"
	"github.com/quasilyte/chipseq/song"
)

// demoSong is a short looping tune that exercises the common effects:
// arpeggio, vibrato, portamento and the instrument macros.
func demoSong() *song.Song {
	s := song.New(3, 16)
	s.Name = "demo"
	s.Speeds = []int{6, 5}
	s.Orders = [][]int{
		{0, 0, 0},
		{1, 0, 1},
	}

	lead := &song.Instrument{Name: "lead"}
	lead.Macros[macro.ParamVol] = macro.NewADSR(0, 127, 32, 4, 8, 96, 0, 0, 16)
	lead.Macros[macro.ParamDuty] = macro.NewSequence(2, 2, 1)
	leadIndex := s.AddInstrument(lead)

	bass := &song.Instrument{Name: "bass"}
	bass.Macros[macro.ParamDuty] = macro.NewSequence(3)
	bassIndex := s.AddInstrument(bass)

	chord := &song.Instrument{Name: "chord"}
	vol := macro.NewSequence(127, 112, 96, 80, 72)
	vol.Release = 4
	chord.Macros[macro.ParamVol] = vol
	chordIndex := s.AddInstrument(chord)

	note := func(ch, pattern, row, n, ins int, effects ...song.Effect) {
		r := &s.Pattern(ch, pattern).Rows[row]
		r.Note = n
		r.Instrument = ins
		r.Effects = effects
	}
	effect := func(ch, pattern, row int, effects ...song.Effect) {
		r := &s.Pattern(ch, pattern).Rows[row]
		r.Effects = append(r.Effects, effects...)
	}
	release := func(ch, pattern, row int) {
		s.Pattern(ch, pattern).Rows[row].Note = song.NoteRelease
	}

	melody := [2][]int{
		{72, 74, 76, 79, 76, 74, 72, 67},
		{69, 72, 74, 76, 74, 72, 71, 72},
	}
	for p, notes := range melody {
		for i, n := range notes {
			note(0, p, i*2, n, leadIndex)
		}
		effect(0, p, 14, song.Effect{Code: 0x04, Value: 0x24})
	}

	note(1, 0, 0, 36, bassIndex)
	note(1, 0, 4, 43, bassIndex)
	note(1, 0, 8, 41, bassIndex)
	note(1, 0, 12, 43, bassIndex, song.Effect{Code: 0x03, Value: 0x08})
	note(1, 0, 14, 36, bassIndex, song.Effect{Code: 0x03, Value: 0x08})

	note(2, 0, 0, 60, chordIndex, song.Effect{Code: 0x00, Value: 0x47})
	release(2, 0, 6)
	note(2, 0, 8, 57, chordIndex, song.Effect{Code: 0x00, Value: 0x37})
	release(2, 0, 14)
	note(2, 1, 0, 53, chordIndex, song.Effect{Code: 0x00, Value: 0x47})
	note(2, 1, 8, 55, chordIndex, song.Effect{Code: 0x00, Value: 0x47})
	s.Pattern(2, 1).Rows[15].Note = song.NoteOff

	return s
}
