// Package cstream implements the command stream: a compact per-channel
// bytecode that replays a pre-rendered performance as chipseq Commands.
//
// A stream is produced by Builder (or Export, which renders a song with
// the scheduler) and played back by Player. The stream bytes are never
// modified after parsing; a single Stream can be shared by any number
// of players.
package cstream

import (
	"encoding/binary"

	"github.com/quasilyte/chipseq"
)

// Stream is a parsed command stream.
type Stream struct {
	NumChannels int

	// WidePointers means the addresses are 32-bit.
	WidePointers bool

	BigEndian bool

	FastDelays      [NumFastDelays]int
	FastInstruments [NumFastInstruments]int
	FastVolumes     [NumFastVolumes]int
	FastCommands    [NumFastCommands]chipseq.CommandKind

	// Starts holds the program start address of every channel.
	// A zero address means the channel has no program.
	Starts []int

	// StackDepths holds the call stack capacity of every channel.
	StackDepths []int

	// ProgramOffset is the address of the first program byte.
	ProgramOffset int

	// Data is the complete stream, header included.
	// Addresses are offsets into Data.
	Data []byte
}

func (s *Stream) byteOrder() binary.ByteOrder {
	if s.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (s *Stream) pointerSize() int {
	if s.WidePointers {
		return 4
	}
	return 2
}

func (s *Stream) newReader(addr int) reader {
	return reader{
		data:  s.Data,
		pos:   addr,
		order: s.byteOrder(),
		wide:  s.WidePointers,
	}
}

// validAddr reports whether addr points inside the program area.
func (s *Stream) validAddr(addr int) bool {
	return addr >= s.ProgramOffset && addr < len(s.Data)
}

func headerSize(numChannels, pointerSize int) int {
	return offsetStarts + numChannels*pointerSize + numChannels
}
