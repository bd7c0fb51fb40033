package cstream

import (
	"errors"
	"fmt"

	"github.com/quasilyte/chipseq"
)

// InstructionKind classifies a decoded instruction.
type InstructionKind uint8

const (
	InstrCommand InstructionKind = iota
	InstrWait
	InstrCall
	InstrReturn
	InstrJump
	InstrLoop
	InstrNop
	InstrRate
	InstrHalt
)

// Instruction is a decoded stream instruction.
type Instruction struct {
	Addr int
	Size int
	Op   byte
	Kind InstructionKind

	// Command is set for InstrCommand; its Channel is always 0.
	Command chipseq.Command

	// Wait is the number of ticks for InstrWait.
	Wait int

	// Target is the destination address for InstrCall, InstrJump and InstrLoop.
	Target int

	// Count is the number of extra repetitions for InstrLoop.
	Count int

	// Rate is a 16.16 fixed point tick rate in Hz for InstrRate.
	Rate uint32
}

var ErrIllegalOpcode = errors.New("illegal opcode")

// DecodeError describes an instruction that can't be decoded.
type DecodeError struct {
	Addr int
	Op   byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %#x (op=%#02x): %v", e.Addr, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads the instruction at addr.
func Decode(s *Stream, addr int) (Instruction, error) {
	ins := Instruction{Addr: addr}
	if !s.validAddr(addr) {
		return ins, &DecodeError{Addr: addr, Err: ErrOutOfBounds}
	}

	r := s.newReader(addr)
	op := r.u8()
	ins.Op = byte(op)

	command := func(kind chipseq.CommandKind, arg0, arg1 int) {
		ins.Kind = InstrCommand
		ins.Command = chipseq.Command{Kind: kind, Arg0: arg0, Arg1: arg1}
	}
	operands := func(kind chipseq.CommandKind) {
		var args [2]int
		for i := 0; i < kind.Arity(); i++ {
			args[i] = r.varint()
		}
		command(kind, args[0], args[1])
	}

	switch {
	case op <= opNoteMax:
		command(chipseq.CmdNoteOn, op-noteCenter, 0)
	case op >= opFastDelay:
		ins.Kind = InstrWait
		ins.Wait = s.FastDelays[op-opFastDelay]
	case op >= opFastInstrument && op < opFastInstrument+NumFastInstruments:
		command(chipseq.CmdInstrument, s.FastInstruments[op-opFastInstrument], 0)
	case op >= opFastVolume && op < opFastVolume+NumFastVolumes:
		command(chipseq.CmdVolume, s.FastVolumes[op-opFastVolume], 0)
	case op >= opFastCommand && op < opFastCommand+NumFastCommands:
		operands(s.FastCommands[op-opFastCommand])

	case op == opNoteNull:
		command(chipseq.CmdNoteOn, chipseq.NoteNull, 0)
	case op == opNoteOff:
		command(chipseq.CmdNoteOff, 0, 0)
	case op == opNoteOffEnv:
		command(chipseq.CmdNoteOffEnv, 0, 0)
	case op == opEnvRelease:
		command(chipseq.CmdEnvRelease, 0, 0)
	case op == opInstrument:
		command(chipseq.CmdInstrument, r.u8(), 0)
	case op == opPrePorta:
		flags := r.u8()
		command(chipseq.CmdPrePorta, flags&1, (flags>>1)&1)
	case op == opArpTime:
		command(chipseq.CmdHintArpTime, r.u8(), 0)
	case op == opVibrato:
		depth := r.u8()
		command(chipseq.CmdHintVibrato, depth, r.u8())
	case op == opVibratoRange:
		command(chipseq.CmdHintVibratoRange, r.u8(), 0)
	case op == opVibratoShape:
		command(chipseq.CmdHintVibratoShape, r.u8(), 0)
	case op == opPitch:
		command(chipseq.CmdPitch, r.s16(), 0)
	case op == opArpeggio:
		command(chipseq.CmdHintArpeggio, r.u8(), 0)
	case op == opVolume:
		command(chipseq.CmdVolume, r.u8(), 0)
	case op == opVolSlide:
		command(chipseq.CmdHintVolSlide, r.s16(), 0)
	case op == opPorta:
		target := r.u8() - noteCenter
		command(chipseq.CmdHintPorta, target, r.u8())
	case op == opLegato:
		note := r.u8()
		if note == legatoNullOperand {
			note = chipseq.NoteNull
		} else {
			note -= noteCenter
		}
		command(chipseq.CmdLegato, note, 0)
	case op == opVolSlideTarget:
		speed := r.s16()
		command(chipseq.CmdHintVolSlideTarget, speed, r.s16())
	case op == opTremolo:
		depth := r.u8()
		command(chipseq.CmdHintTremolo, depth, r.u8())
	case op == opPanbrello:
		depth := r.u8()
		command(chipseq.CmdHintPanbrello, depth, r.u8())
	case op == opPanSlide:
		command(chipseq.CmdHintPanSlide, r.s8(), 0)
	case op == opPanning:
		l := r.u8()
		command(chipseq.CmdPanning, l, r.u8())
	case op == opCommand:
		kind := chipseq.CommandKind(r.u8())
		if r.err == nil && kind >= chipseq.NumCommandKinds {
			return ins, &DecodeError{Addr: addr, Op: ins.Op, Err: fmt.Errorf("unknown command kind %d", kind)}
		}
		operands(kind)

	case op == opWait8:
		ins.Kind = InstrWait
		ins.Wait = r.u8()
	case op == opWait16:
		ins.Kind = InstrWait
		ins.Wait = r.u16()
	case op == opWait1:
		ins.Kind = InstrWait
		ins.Wait = 1
	case op == opCall16:
		ins.Kind = InstrCall
		ins.Target = r.u16()
	case op == opCall32:
		ins.Kind = InstrCall
		ins.Target = int(r.u32())
	case op == opReturn:
		ins.Kind = InstrReturn
	case op == opJump:
		ins.Kind = InstrJump
		ins.Target = r.pointer()
	case op == opLoop:
		ins.Kind = InstrLoop
		ins.Target = addr - r.u8()
		ins.Count = r.u8()
	case op == opNop:
		ins.Kind = InstrNop
	case op == opRate:
		ins.Kind = InstrRate
		ins.Rate = r.u32()
	case op == opHalt:
		ins.Kind = InstrHalt

	default:
		return ins, &DecodeError{Addr: addr, Op: ins.Op, Err: ErrIllegalOpcode}
	}

	if r.err != nil {
		return ins, &DecodeError{Addr: addr, Op: ins.Op, Err: r.err}
	}
	ins.Size = r.pos - addr
	return ins, nil
}

func (ins Instruction) String() string {
	switch ins.Kind {
	case InstrCommand:
		c := ins.Command
		switch c.Kind.Arity() {
		case 0:
			return c.Kind.String()
		case 1:
			return fmt.Sprintf("%s %d", c.Kind, c.Arg0)
		default:
			return fmt.Sprintf("%s %d, %d", c.Kind, c.Arg0, c.Arg1)
		}
	case InstrWait:
		return fmt.Sprintf("wait %d", ins.Wait)
	case InstrCall:
		return fmt.Sprintf("call %#04x", ins.Target)
	case InstrReturn:
		return "ret"
	case InstrJump:
		return fmt.Sprintf("jmp %#04x", ins.Target)
	case InstrLoop:
		return fmt.Sprintf("loop %#04x, %d", ins.Target, ins.Count)
	case InstrNop:
		return "nop"
	case InstrRate:
		return fmt.Sprintf("rate %.3f", RateHz(ins.Rate))
	case InstrHalt:
		return "halt"
	default:
		return fmt.Sprintf("op %#02x", ins.Op)
	}
}

// IsTerminal reports whether the execution never falls through to the next instruction.
func (ins Instruction) IsTerminal() bool {
	switch ins.Kind {
	case InstrHalt, InstrJump, InstrReturn:
		return true
	default:
		return false
	}
}

// RateHz converts a 16.16 rate operand to Hz.
func RateHz(v uint32) float64 {
	return float64(v) / (1 << rateFractionalBits)
}

// Disassemble decodes a channel program from its start address.
//
// The walk is linear: it stops after a halt, a jump or a return.
// fn can return false to stop earlier.
func Disassemble(s *Stream, channel int, fn func(ins Instruction) bool) error {
	if channel < 0 || channel >= s.NumChannels {
		return fmt.Errorf("channel %d is out of range", channel)
	}
	addr := s.Starts[channel]
	if addr == 0 {
		return nil
	}
	for {
		ins, err := Decode(s, addr)
		if err != nil {
			return err
		}
		if !fn(ins) || ins.IsTerminal() {
			return nil
		}
		addr += ins.Size
	}
}
