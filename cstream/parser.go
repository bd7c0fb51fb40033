package cstream

import (
	"fmt"
	"strings"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/song"
)

// MaxStreamSize is the largest stream Parse accepts.
const MaxStreamSize = 64 << 20

type parser struct {
	data []byte

	stream *Stream
	r      reader

	// These fields below are needed for better error reporting.
	stage      string
	stageIndex int
}

// Parse decodes the stream header.
//
// The data slice is not copied; it must not be modified while the stream is in use.
// Program bytes are validated lazily by the Player and Decode.
func Parse(data []byte) (*Stream, error) {
	p := &parser{data: data}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.stream, nil
}

func (p *parser) startStage(name string) {
	p.stage = name
	p.stageIndex = -1
}

func (p *parser) formatStage() string {
	var b strings.Builder
	b.WriteString(p.stage)
	if p.stageIndex >= 0 {
		fmt.Fprintf(&b, "[%d]", p.stageIndex)
	}
	return b.String()
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	text := fmt.Sprintf(format, args...)
	if tag := p.formatStage(); tag != "" {
		text = tag + ": " + text
	}
	return &ParseError{
		Message: text,
		Offset:  p.r.pos,
	}
}

func (p *parser) checkRead(what string) {
	if p.r.err != nil {
		panic(p.errorf("unexpected EOF while reading %s", what))
	}
}

func (p *parser) readByte(what string) int {
	v := p.r.u8()
	p.checkRead(what)
	return v
}

func (p *parser) readWord(what string) int {
	v := p.r.u16()
	p.checkRead(what)
	return v
}

func (p *parser) readPointer(what string) int {
	v := p.r.pointer()
	p.checkRead(what)
	return v
}

func (p *parser) parse() (err error) {
	defer func() {
		rv := recover()
		if rv != nil {
			if panicErr, ok := rv.(*ParseError); ok {
				err = panicErr
			} else {
				panic(rv)
			}
		}
	}()

	p.parseHeader()
	p.parseTables()
	p.parseChannels()

	return nil
}

func (p *parser) parseHeader() {
	p.startStage("header")

	if len(p.data) > MaxStreamSize {
		panic(p.errorf("stream is too big (%d bytes)", len(p.data)))
	}
	if len(p.data) < offsetStarts {
		panic(p.errorf("unexpected EOF while reading header"))
	}
	if string(p.data[:len(headerMagic)]) != headerMagic {
		panic(p.errorf("invalid magic %q", p.data[:len(headerMagic)]))
	}

	s := &Stream{Data: p.data}
	flags := p.data[offsetFlags]
	s.WidePointers = flags&FlagWidePointers != 0
	s.BigEndian = flags&FlagBigEndian != 0
	if flags&^(FlagWidePointers|FlagBigEndian) != 0 {
		panic(p.errorf("unknown flags %#02x", flags))
	}
	p.stream = s
	p.r = s.newReader(offsetNumChannels)

	s.NumChannels = p.readWord("channel count")
	if s.NumChannels == 0 {
		panic(p.errorf("stream has no channels"))
	}
	if s.NumChannels > song.MaxChannels {
		panic(p.errorf("too many channels (%d)", s.NumChannels))
	}
	s.ProgramOffset = headerSize(s.NumChannels, s.pointerSize())
}

func (p *parser) parseTables() {
	s := p.stream

	p.startStage("fast delays")
	p.r.pos = offsetFastDelays
	for i := range s.FastDelays {
		p.stageIndex = i
		s.FastDelays[i] = p.readByte("delay")
	}

	p.startStage("fast instruments")
	p.r.pos = offsetFastIns
	for i := range s.FastInstruments {
		p.stageIndex = i
		s.FastInstruments[i] = p.readByte("instrument")
	}

	p.startStage("fast volumes")
	p.r.pos = offsetFastVolumes
	for i := range s.FastVolumes {
		p.stageIndex = i
		s.FastVolumes[i] = p.readByte("volume")
	}

	p.startStage("fast commands")
	p.r.pos = offsetFastCmds
	for i := range s.FastCommands {
		p.stageIndex = i
		kind := chipseq.CommandKind(p.readByte("command kind"))
		if kind >= chipseq.NumCommandKinds {
			panic(p.errorf("unknown command kind %d", kind))
		}
		s.FastCommands[i] = kind
	}
}

func (p *parser) parseChannels() {
	s := p.stream

	p.startStage("start addresses")
	p.r.pos = offsetStarts
	s.Starts = make([]int, s.NumChannels)
	for i := range s.Starts {
		p.stageIndex = i
		addr := p.readPointer("address")
		if addr != 0 && !s.validAddr(addr) {
			panic(p.errorf("start address %#x is outside of the program", addr))
		}
		s.Starts[i] = addr
	}

	p.startStage("stack depths")
	s.StackDepths = make([]int, s.NumChannels)
	for i := range s.StackDepths {
		p.stageIndex = i
		depth := p.readByte("depth")
		if depth > MaxStackDepth {
			depth = MaxStackDepth
		}
		s.StackDepths[i] = depth
	}
}
