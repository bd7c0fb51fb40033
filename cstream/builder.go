package cstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/song"
)

// Builder encodes channel programs into a command stream.
type Builder struct {
	// Programs holds a program per channel.
	// A nil (or empty) program produces a channel that is halted from the start.
	Programs []*Program

	BigEndian bool

	// Force32 makes the stream use 32-bit pointers even if it is small.
	Force32 bool
}

var ErrStreamTooBig = errors.New("stream is too big")

type loopRange struct {
	from int
	to   int
}

// byteOrder is implemented by binary.LittleEndian and binary.BigEndian.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type encoder struct {
	programs []*Program
	order    byteOrder
	wide     bool

	delays      []int
	instruments []int
	volumes     []int
	commands    []chipseq.CommandKind

	delayIndex      map[int]int
	instrumentIndex map[int]int
	volumeIndex     map[int]int
	commandIndex    map[chipseq.CommandKind]int

	headerSize int
	starts     []int
	labels     [][]int
	loops      []loopRange
}

// Build encodes the programs.
//
// The fast dictionaries are filled with the most popular values.
// The pointers are 16-bit unless the stream does not fit into 64 KiB.
func (b *Builder) Build() ([]byte, error) {
	if len(b.Programs) == 0 {
		return nil, errors.New("no programs to build")
	}
	if len(b.Programs) > song.MaxChannels {
		return nil, fmt.Errorf("too many programs (%d)", len(b.Programs))
	}
	for i, p := range b.Programs {
		if p != nil && p.err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, p.err)
		}
	}

	e := &encoder{
		programs: make([]*Program, len(b.Programs)),
		order:    binary.LittleEndian,
		wide:     b.Force32,
	}
	if b.BigEndian {
		e.order = binary.BigEndian
	}
	for i, p := range b.Programs {
		e.programs[i] = withTerminator(p)
	}
	e.chooseTables()

	program, err := e.layout()
	if err != nil {
		return nil, err
	}
	if !e.wide && e.headerSize+len(program) > 0xffff {
		e.wide = true
		if program, err = e.layout(); err != nil {
			return nil, err
		}
	}
	if e.headerSize+len(program) > MaxStreamSize {
		return nil, ErrStreamTooBig
	}

	out := make([]byte, e.headerSize, e.headerSize+len(program))
	e.writeHeader(out)
	return append(out, program...), nil
}

func withTerminator(p *Program) *Program {
	if p.IsEmpty() || p.terminated() {
		return p
	}
	clone := *p
	clone.ops = append(p.ops[:len(p.ops):len(p.ops)], programOp{kind: progHalt})
	return &clone
}

// layout encodes the programs twice: first to find the label addresses,
// then to resolve the branches.
func (e *encoder) layout() ([]byte, error) {
	ptrSize := 2
	if e.wide {
		ptrSize = 4
	}
	e.headerSize = headerSize(len(e.programs), ptrSize)
	e.starts = make([]int, len(e.programs))
	e.labels = make([][]int, len(e.programs))
	for i, p := range e.programs {
		if p.IsEmpty() {
			continue
		}
		e.labels[i] = make([]int, p.numLabels)
		for j := range e.labels[i] {
			e.labels[i][j] = -1
		}
	}

	if _, err := e.encodePrograms(false); err != nil {
		return nil, err
	}
	return e.encodePrograms(true)
}

func (e *encoder) encodePrograms(resolve bool) ([]byte, error) {
	var buf []byte
	for i, p := range e.programs {
		if p.IsEmpty() {
			e.starts[i] = 0
			continue
		}
		e.starts[i] = e.headerSize + len(buf)
		e.loops = e.loops[:0]
		var err error
		buf, err = e.encodeProgram(buf, i, p, resolve)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		if resolve {
			if err := e.checkLoops(); err != nil {
				return nil, fmt.Errorf("channel %d: %w", i, err)
			}
		}
	}
	return buf, nil
}

func (e *encoder) encodeProgram(buf []byte, channel int, p *Program, resolve bool) ([]byte, error) {
	labels := e.labels[channel]
	target := func(l Label) (int, error) {
		if !resolve {
			return 0, nil
		}
		addr := labels[l]
		if addr < 0 {
			return 0, fmt.Errorf("label %d is not bound", l)
		}
		return addr, nil
	}

	for _, op := range p.ops {
		addr := e.headerSize + len(buf)
		switch op.kind {
		case progBind:
			labels[op.label] = addr
		case progCommand:
			buf = e.appendCommand(buf, op.cmd)
		case progWait:
			buf = e.appendWait(buf, op.n)
		case progCall:
			dst, err := target(op.label)
			if err != nil {
				return nil, err
			}
			if e.wide {
				buf = append(buf, opCall32)
				buf = e.order.AppendUint32(buf, uint32(dst))
			} else {
				buf = append(buf, opCall16)
				buf = e.order.AppendUint16(buf, uint16(dst))
			}
		case progReturn:
			buf = append(buf, opReturn)
		case progJump:
			dst, err := target(op.label)
			if err != nil {
				return nil, err
			}
			buf = append(buf, opJump)
			buf = e.appendPointer(buf, dst)
		case progLoop:
			dst, err := target(op.label)
			if err != nil {
				return nil, err
			}
			back := addr - dst
			if resolve && (back < 0 || back > 0xff) {
				return nil, fmt.Errorf("loop at %#x can't reach label %d at %#x", addr, op.label, dst)
			}
			e.loops = append(e.loops, loopRange{from: dst, to: addr})
			buf = append(buf, opLoop, byte(back), byte(op.n))
		case progNop:
			buf = append(buf, opNop)
		case progRate:
			buf = append(buf, opRate)
			buf = e.order.AppendUint32(buf, op.rate)
		case progHalt:
			buf = append(buf, opHalt)
		}
	}
	return buf, nil
}

func (e *encoder) checkLoops() error {
	for i, a := range e.loops {
		for j, b := range e.loops {
			if i != j && b.to >= a.from && b.to < a.to {
				return fmt.Errorf("loop at %#x is nested into the loop at %#x", b.to, a.to)
			}
		}
	}
	return nil
}

func (e *encoder) appendPointer(buf []byte, addr int) []byte {
	if e.wide {
		return e.order.AppendUint32(buf, uint32(addr))
	}
	return e.order.AppendUint16(buf, uint16(addr))
}

func (e *encoder) appendWait(buf []byte, n int) []byte {
	for n > 0 {
		chunk := min(n, 0xffff)
		if i, ok := e.delayIndex[chunk]; ok {
			buf = append(buf, byte(opFastDelay+i))
		} else {
			switch {
			case chunk == 1:
				buf = append(buf, opWait1)
			case chunk <= 0xff:
				buf = append(buf, opWait8, byte(chunk))
			default:
				buf = append(buf, opWait16)
				buf = e.order.AppendUint16(buf, uint16(chunk))
			}
		}
		n -= chunk
	}
	return buf
}

func (e *encoder) appendCommand(buf []byte, c chipseq.Command) []byte {
	switch c.Kind {
	case chipseq.CmdInstrument:
		if i, ok := e.instrumentIndex[c.Arg0]; ok {
			return append(buf, byte(opFastInstrument+i))
		}
	case chipseq.CmdVolume:
		if i, ok := e.volumeIndex[c.Arg0]; ok {
			return append(buf, byte(opFastVolume+i))
		}
	}
	if out, ok := e.appendDedicated(buf, c); ok {
		return out
	}

	if i, ok := e.commandIndex[c.Kind]; ok {
		buf = append(buf, byte(opFastCommand+i))
	} else {
		buf = append(buf, opCommand, byte(c.Kind))
	}
	args := [2]int{c.Arg0, c.Arg1}
	for i := 0; i < c.Kind.Arity(); i++ {
		buf = binary.AppendVarint(buf, int64(args[i]))
	}
	return buf
}

func isU8(v int) bool  { return v >= 0 && v <= 0xff }
func isS8(v int) bool  { return v >= -0x80 && v <= 0x7f }
func isS16(v int) bool { return v >= -0x8000 && v <= 0x7fff }
func isBit(v int) bool { return v == 0 || v == 1 }

// appendDedicated encodes the command with its own opcode if the operands fit.
func (e *encoder) appendDedicated(buf []byte, c chipseq.Command) ([]byte, bool) {
	s16 := func(buf []byte, v int) []byte {
		return e.order.AppendUint16(buf, uint16(int16(v)))
	}

	switch c.Kind {
	case chipseq.CmdNoteOn:
		if c.Arg0 == chipseq.NoteNull {
			return append(buf, opNoteNull), true
		}
		if v := c.Arg0 + noteCenter; v >= 0 && v <= opNoteMax {
			return append(buf, byte(v)), true
		}
	case chipseq.CmdNoteOff:
		return append(buf, opNoteOff), true
	case chipseq.CmdNoteOffEnv:
		return append(buf, opNoteOffEnv), true
	case chipseq.CmdEnvRelease:
		return append(buf, opEnvRelease), true
	case chipseq.CmdInstrument:
		if isU8(c.Arg0) {
			return append(buf, opInstrument, byte(c.Arg0)), true
		}
	case chipseq.CmdPrePorta:
		if isBit(c.Arg0) && isBit(c.Arg1) {
			return append(buf, opPrePorta, byte(c.Arg0|c.Arg1<<1)), true
		}
	case chipseq.CmdHintArpTime:
		if isU8(c.Arg0) {
			return append(buf, opArpTime, byte(c.Arg0)), true
		}
	case chipseq.CmdHintVibrato:
		if isU8(c.Arg0) && isU8(c.Arg1) {
			return append(buf, opVibrato, byte(c.Arg0), byte(c.Arg1)), true
		}
	case chipseq.CmdHintVibratoRange:
		if isU8(c.Arg0) {
			return append(buf, opVibratoRange, byte(c.Arg0)), true
		}
	case chipseq.CmdHintVibratoShape:
		if isU8(c.Arg0) {
			return append(buf, opVibratoShape, byte(c.Arg0)), true
		}
	case chipseq.CmdPitch:
		if isS16(c.Arg0) {
			return s16(append(buf, opPitch), c.Arg0), true
		}
	case chipseq.CmdHintArpeggio:
		if isU8(c.Arg0) {
			return append(buf, opArpeggio, byte(c.Arg0)), true
		}
	case chipseq.CmdVolume:
		if isU8(c.Arg0) {
			return append(buf, opVolume, byte(c.Arg0)), true
		}
	case chipseq.CmdHintVolSlide:
		if isS16(c.Arg0) {
			return s16(append(buf, opVolSlide), c.Arg0), true
		}
	case chipseq.CmdHintPorta:
		if isU8(c.Arg0+noteCenter) && isU8(c.Arg1) {
			return append(buf, opPorta, byte(c.Arg0+noteCenter), byte(c.Arg1)), true
		}
	case chipseq.CmdLegato:
		if c.Arg0 == chipseq.NoteNull {
			return append(buf, opLegato, legatoNullOperand), true
		}
		if v := c.Arg0 + noteCenter; v >= 0 && v < legatoNullOperand {
			return append(buf, opLegato, byte(v)), true
		}
	case chipseq.CmdHintVolSlideTarget:
		if isS16(c.Arg0) && isS16(c.Arg1) {
			return s16(s16(append(buf, opVolSlideTarget), c.Arg0), c.Arg1), true
		}
	case chipseq.CmdHintTremolo:
		if isU8(c.Arg0) && isU8(c.Arg1) {
			return append(buf, opTremolo, byte(c.Arg0), byte(c.Arg1)), true
		}
	case chipseq.CmdHintPanbrello:
		if isU8(c.Arg0) && isU8(c.Arg1) {
			return append(buf, opPanbrello, byte(c.Arg0), byte(c.Arg1)), true
		}
	case chipseq.CmdHintPanSlide:
		if isS8(c.Arg0) {
			return append(buf, opPanSlide, byte(int8(c.Arg0))), true
		}
	case chipseq.CmdPanning:
		if isU8(c.Arg0) && isU8(c.Arg1) {
			return append(buf, opPanning, byte(c.Arg0), byte(c.Arg1)), true
		}
	}
	return buf, false
}

// chooseTables fills the fast dictionaries with the most used values.
func (e *encoder) chooseTables() {
	delays := make(map[int]int)
	instruments := make(map[int]int)
	volumes := make(map[int]int)
	commands := make(map[int]int)

	for _, p := range e.programs {
		if p.IsEmpty() {
			continue
		}
		for _, op := range p.ops {
			switch op.kind {
			case progWait:
				for n := op.n; n > 0; n -= min(n, 0xffff) {
					if chunk := min(n, 0xffff); chunk > 1 {
						delays[chunk]++
					}
				}
			case progCommand:
				c := op.cmd
				switch {
				case c.Kind == chipseq.CmdInstrument && isU8(c.Arg0):
					instruments[c.Arg0]++
				case c.Kind == chipseq.CmdVolume && isU8(c.Arg0):
					volumes[c.Arg0]++
				default:
					if _, ok := e.appendDedicated(nil, c); !ok {
						commands[int(c.Kind)]++
					}
				}
			}
		}
	}

	e.delays = mostPopular(delays, NumFastDelays, 0xff)
	e.instruments = mostPopular(instruments, NumFastInstruments, 0xff)
	e.volumes = mostPopular(volumes, NumFastVolumes, 0xff)
	e.commands = e.commands[:0]
	for _, k := range mostPopular(commands, NumFastCommands, 0xff) {
		e.commands = append(e.commands, chipseq.CommandKind(k))
	}

	e.delayIndex = indexOf(e.delays)
	e.instrumentIndex = indexOf(e.instruments)
	e.volumeIndex = indexOf(e.volumes)
	e.commandIndex = make(map[chipseq.CommandKind]int, len(e.commands))
	for i, k := range e.commands {
		e.commandIndex[k] = i
	}
}

// mostPopular returns up to n keys sorted by their usage count.
// Keys above limit are not eligible.
func mostPopular(counts map[int]int, n, limit int) []int {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		if k >= 0 && k <= limit {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := counts[keys[i]], counts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func indexOf(values []int) map[int]int {
	m := make(map[int]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}

func (e *encoder) writeHeader(out []byte) {
	copy(out, headerMagic)
	e.order.PutUint16(out[offsetNumChannels:], uint16(len(e.programs)))
	var flags byte
	if e.wide {
		flags |= FlagWidePointers
	}
	if e.order == binary.BigEndian {
		flags |= FlagBigEndian
	}
	out[offsetFlags] = flags

	for i, v := range e.delays {
		out[offsetFastDelays+i] = byte(v)
	}
	for i, v := range e.instruments {
		out[offsetFastIns+i] = byte(v)
	}
	for i, v := range e.volumes {
		out[offsetFastVolumes+i] = byte(v)
	}
	for i, k := range e.commands {
		out[offsetFastCmds+i] = byte(k)
	}

	pos := offsetStarts
	for _, addr := range e.starts {
		if e.wide {
			e.order.PutUint32(out[pos:], uint32(addr))
			pos += 4
		} else {
			e.order.PutUint16(out[pos:], uint16(addr))
			pos += 2
		}
	}
	for _, p := range e.programs {
		out[pos] = byte(p.effectiveStackDepth())
		pos++
	}
}
