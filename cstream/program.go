package cstream

import (
	"fmt"
	"math"

	"github.com/quasilyte/chipseq"
)

// Label marks a program position that can be used as a branch target.
type Label int

type programOpKind uint8

const (
	progCommand programOpKind = iota
	progWait
	progBind
	progCall
	progReturn
	progJump
	progLoop
	progNop
	progRate
	progHalt
)

type programOp struct {
	kind  programOpKind
	cmd   chipseq.Command
	n     int
	label Label
	rate  uint32
}

// Program is a symbolic channel program.
// The zero value is an empty program, ready to use.
//
// Program methods never fail; errors (like binding a label twice)
// are reported by Builder.Build.
type Program struct {
	ops       []programOp
	numLabels int
	bound     []bool

	stackDepth    int
	hasStackDepth bool

	err error
}

func (p *Program) push(op programOp) {
	p.ops = append(p.ops, op)
}

func (p *Program) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Command appends a command; its Channel field is ignored.
func (p *Program) Command(c chipseq.Command) {
	c.Channel = 0
	p.push(programOp{kind: progCommand, cmd: c})
}

// Wait suspends the channel for n ticks.
// Non-positive values are ignored.
func (p *Program) Wait(n int) {
	if n <= 0 {
		return
	}
	p.push(programOp{kind: progWait, n: n})
}

func (p *Program) NewLabel() Label {
	p.numLabels++
	p.bound = append(p.bound, false)
	return Label(p.numLabels - 1)
}

// Bind attaches the label to the next instruction.
func (p *Program) Bind(l Label) {
	if !p.validLabel(l) {
		return
	}
	if p.bound[l] {
		p.setErr(fmt.Errorf("label %d is bound twice", l))
		return
	}
	p.bound[l] = true
	p.push(programOp{kind: progBind, label: l})
}

func (p *Program) Call(l Label) {
	if p.validLabel(l) {
		p.push(programOp{kind: progCall, label: l})
	}
}

func (p *Program) Return() { p.push(programOp{kind: progReturn}) }

func (p *Program) Jump(l Label) {
	if p.validLabel(l) {
		p.push(programOp{kind: progJump, label: l})
	}
}

// Loop repeats the code between the label and this instruction count more times.
// The label must precede the loop closely (255 bytes at most) and loops can't be nested.
func (p *Program) Loop(l Label, count int) {
	if count < 0 || count > 0xff {
		p.setErr(fmt.Errorf("loop count %d is out of range", count))
		return
	}
	if p.validLabel(l) {
		p.push(programOp{kind: progLoop, label: l, n: count})
	}
}

func (p *Program) Nop() { p.push(programOp{kind: progNop}) }

func (p *Program) Halt() { p.push(programOp{kind: progHalt}) }

// SetRate changes the tick rate of the playback.
func (p *Program) SetRate(hz float64) {
	if !(hz > 0) || hz >= 1<<(32-rateFractionalBits) {
		p.setErr(fmt.Errorf("invalid tick rate %v", hz))
		return
	}
	p.push(programOp{kind: progRate, rate: uint32(math.Round(hz * (1 << rateFractionalBits)))})
}

// SetStackDepth declares the call stack capacity of the channel.
// Programs that don't declare it get DefaultStackDepth if they use calls.
func (p *Program) SetStackDepth(n int) {
	if n < 0 || n > MaxStackDepth {
		p.setErr(fmt.Errorf("stack depth %d is out of range", n))
		return
	}
	p.stackDepth = n
	p.hasStackDepth = true
}

// DefaultStackDepth is the stack capacity of programs that use calls
// without declaring the depth.
const DefaultStackDepth = 8

func (p *Program) validLabel(l Label) bool {
	if l < 0 || int(l) >= p.numLabels {
		p.setErr(fmt.Errorf("unknown label %d", l))
		return false
	}
	return true
}

// IsEmpty reports whether the program has no instructions.
func (p *Program) IsEmpty() bool {
	return p == nil || len(p.ops) == 0
}

func (p *Program) effectiveStackDepth() int {
	if p.IsEmpty() {
		return 0
	}
	if p.hasStackDepth {
		return p.stackDepth
	}
	for _, op := range p.ops {
		if op.kind == progCall {
			return DefaultStackDepth
		}
	}
	return 0
}

// terminated reports whether the program never falls off its end.
func (p *Program) terminated() bool {
	for i := len(p.ops) - 1; i >= 0; i-- {
		switch p.ops[i].kind {
		case progBind:
			continue
		case progHalt, progJump, progReturn:
			return true
		default:
			return false
		}
	}
	return false
}
