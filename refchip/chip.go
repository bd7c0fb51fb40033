// Package refchip implements a reference chip: a bank of square wave
// voices driven by chipseq commands.
//
// It is not an emulation of any real sound chip; it exists to make
// command streams and songs audible in demos and tests.
package refchip

import (
	"io"
	"math"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/internal/tickfx"
)

// VolumeMax is the largest CmdVolume argument the chip accepts.
const VolumeMax = 127

// Config configures a Chip.
type Config struct {
	// A zero value will assume a sample rate of 44100.
	SampleRate int

	// A zero value means 1.
	NumChannels int

	// Volume scales the mixed output, in [0, 1].
	//
	// A zero value means 0.8.
	Volume float64
}

// Chip renders its voices into 16-bit little endian stereo PCM.
//
// It implements chipseq.Dispatcher, chipseq.VolumeMaxer and chipseq.Acquirer.
// Acquire appends the rendered frames to an internal buffer that is drained by Read;
// both must be called from the same goroutine.
type Chip struct {
	sampleRate float64
	amplitude  float64

	voices []voice

	pcm    []byte
	pcmPos int
}

type voice struct {
	keyOn bool

	// pos is the note position in 1/64 semitone units.
	pos   int
	pitch int

	volume int
	panL   int
	panR   int
	duty   int
	ins    int

	phase float64
	step  float64
}

// dutyCycles maps a CmdDuty value to the high part of the wave period.
var dutyCycles = [4]float64{0.125, 0.25, 0.5, 0.75}

func New(config Config) *Chip {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.NumChannels <= 0 {
		config.NumChannels = 1
	}
	if config.Volume <= 0 {
		config.Volume = 0.8
	}
	c := &Chip{
		sampleRate: float64(config.SampleRate),
		amplitude:  math.MaxInt16 * math.Min(config.Volume, 1) / float64(config.NumChannels),
		voices:     make([]voice, config.NumChannels),
	}
	c.Reset()
	return c
}

// Reset silences every voice and drops the rendered frames.
func (c *Chip) Reset() {
	for i := range c.voices {
		c.voices[i] = voice{
			volume: VolumeMax,
			panL:   0xff,
			panR:   0xff,
			duty:   2,
		}
	}
	c.pcm = c.pcm[:0]
	c.pcmPos = 0
}

func (c *Chip) VolumeMax(channel int) int { return VolumeMax }

func (c *Chip) NumChannels() int { return len(c.voices) }

func (c *Chip) Dispatch(cmd chipseq.Command) int {
	if cmd.Channel < 0 || cmd.Channel >= len(c.voices) {
		return 0
	}
	v := &c.voices[cmd.Channel]

	switch cmd.Kind {
	case chipseq.CmdNoteOn:
		if cmd.Arg0 != chipseq.NoteNull {
			v.pos = cmd.Arg0 * tickfx.SemitoneUnits
		}
		v.keyOn = true
		v.phase = 0
	case chipseq.CmdNoteOff, chipseq.CmdNoteOffEnv:
		v.keyOn = false
	case chipseq.CmdInstrument:
		v.ins = cmd.Arg0
	case chipseq.CmdVolume:
		v.volume = clamp(cmd.Arg0, 0, VolumeMax)
	case chipseq.CmdPitch:
		v.pitch = cmd.Arg0
	case chipseq.CmdPanning:
		v.panL = clamp(cmd.Arg0, 0, 0xff)
		v.panR = clamp(cmd.Arg1, 0, 0xff)
	case chipseq.CmdNotePorta:
		target := cmd.Arg1 * tickfx.SemitoneUnits
		if v.pos < target {
			v.pos = min(v.pos+cmd.Arg0, target)
		} else {
			v.pos = max(v.pos-cmd.Arg0, target)
		}
	case chipseq.CmdLegato:
		if cmd.Arg0 != chipseq.NoteNull {
			v.pos = cmd.Arg0 * tickfx.SemitoneUnits
		}
	case chipseq.CmdPhaseReset:
		v.phase = 0
	case chipseq.CmdDuty:
		v.duty = cmd.Arg0 & 3
	}

	v.step = c.frequency(v) / c.sampleRate
	return 0
}

// frequency uses the MIDI convention: note 69 is 440 Hz.
func (c *Chip) frequency(v *voice) float64 {
	note := float64(v.pos+v.pitch) / tickfx.SemitoneUnits
	return 440 * math.Pow(2, (note-69)/12)
}

// Acquire renders the given number of frames.
func (c *Chip) Acquire(frames int) {
	if c.pcmPos != 0 {
		n := copy(c.pcm, c.pcm[c.pcmPos:])
		c.pcm = c.pcm[:n]
		c.pcmPos = 0
	}
	start := len(c.pcm)
	need := start + frames*4
	if cap(c.pcm) < need {
		grown := make([]byte, start, need)
		copy(grown, c.pcm)
		c.pcm = grown
	}
	c.pcm = c.pcm[:need]
	c.render(c.pcm[start:])
}

func (c *Chip) render(b []byte) {
	for i := 0; i < len(b); i += 4 {
		left := 0.0
		right := 0.0
		for j := range c.voices {
			v := &c.voices[j]
			if !v.keyOn || v.volume == 0 {
				continue
			}
			s := -1.0
			if v.phase < dutyCycles[v.duty] {
				s = 1.0
			}
			s *= c.amplitude * float64(v.volume) / VolumeMax
			left += s * float64(v.panL) / 0xff
			right += s * float64(v.panR) / 0xff
			v.phase += v.step
			v.phase -= math.Floor(v.phase)
		}
		putPCM(b[i:], uint16(toInt16(left)), uint16(toInt16(right)))
	}
}

// Buffered returns the number of rendered frames that were not read yet.
func (c *Chip) Buffered() int {
	return (len(c.pcm) - c.pcmPos) / 4
}

// Read drains the rendered PCM bytes.
// It never blocks; if nothing is buffered, it returns 0 bytes.
func (c *Chip) Read(b []byte) (int, error) {
	n := copy(b, c.pcm[c.pcmPos:])
	c.pcmPos += n
	if c.pcmPos == len(c.pcm) {
		c.pcm = c.pcm[:0]
		c.pcmPos = 0
	}
	return n, nil
}

// Renderer produces frames for a chip.
// engine.Engine implements this interface.
type Renderer interface {
	NextBuffer(frames int)
}

// Reader pulls frames from a Renderer as the PCM bytes are read.
// Use it as an io.Reader argument for an audio player.
type Reader struct {
	renderer Renderer
	chip     *Chip
}

var _ io.Reader = (*Reader)(nil)

func NewReader(renderer Renderer, chip *Chip) *Reader {
	return &Reader{renderer: renderer, chip: chip}
}

// Read produces 16-bit little endian stereo PCM bytes.
// The result length is always a multiple of 4 (a full frame).
func (r *Reader) Read(b []byte) (int, error) {
	frames := len(b) / 4
	if frames == 0 {
		return 0, nil
	}
	if need := frames - r.chip.Buffered(); need > 0 {
		r.renderer.NextBuffer(need)
	}
	return r.chip.Read(b[:frames*4])
}

func putPCM(b []byte, left, right uint16) {
	b[0] = byte(left)
	b[1] = byte(left >> 8)
	b[2] = byte(right)
	b[3] = byte(right >> 8)
}

func toInt16(v float64) int16 {
	return int16(clamp(int(v), math.MinInt16, math.MaxInt16))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
