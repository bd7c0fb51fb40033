package refchip

import (
	"encoding/binary"
	"testing"

	"github.com/quasilyte/chipseq"
)

func readFrames(t *testing.T, c *Chip, frames int) (left, right []int16) {
	t.Helper()
	c.Acquire(frames)
	b := make([]byte, frames*4)
	n, err := c.Read(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(b) {
		t.Fatalf("read %d bytes, want %d", n, len(b))
	}
	for i := 0; i < n; i += 4 {
		left = append(left, int16(binary.LittleEndian.Uint16(b[i:])))
		right = append(right, int16(binary.LittleEndian.Uint16(b[i+2:])))
	}
	return left, right
}

func TestChipSilence(t *testing.T) {
	c := New(Config{SampleRate: 44000, NumChannels: 2})
	left, right := readFrames(t, c, 100)
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("frame %d: have (%d, %d), want silence", i, left[i], right[i])
		}
	}
	if c.Buffered() != 0 {
		t.Fatalf("buffered frames left: %d", c.Buffered())
	}
}

func TestChipSquareWave(t *testing.T) {
	c := New(Config{SampleRate: 44000, NumChannels: 1})
	// Note 69 is 440 Hz: a period of 100 frames at this sample rate.
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 69})
	left, right := readFrames(t, c, 100)

	for i := 1; i < 49; i++ {
		if left[i] <= 0 {
			t.Fatalf("frame %d: have %d, want a positive sample", i, left[i])
		}
	}
	for i := 52; i < 99; i++ {
		if left[i] >= 0 {
			t.Fatalf("frame %d: have %d, want a negative sample", i, left[i])
		}
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("frame %d: centered voice has unbalanced output", i)
		}
	}

	c.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOff})
	left, _ = readFrames(t, c, 10)
	for i := range left {
		if left[i] != 0 {
			t.Fatalf("frame %d after note_off: have %d, want 0", i, left[i])
		}
	}
}

func TestChipDutyAndPanning(t *testing.T) {
	c := New(Config{SampleRate: 44000, NumChannels: 1})
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdPanning, Arg0: 255, Arg1: 0})
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdDuty, Arg0: 0})
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 69})
	left, right := readFrames(t, c, 100)

	positive := 0
	for i := range left {
		if right[i] != 0 {
			t.Fatalf("frame %d: right channel is not muted", i)
		}
		if left[i] > 0 {
			positive++
		}
	}
	// 12.5% duty cycle.
	if positive < 11 || positive > 14 {
		t.Fatalf("positive frames: have %d, want ~12", positive)
	}
}

func TestChipVolume(t *testing.T) {
	c := New(Config{SampleRate: 44000, NumChannels: 1, Volume: 1})
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOn, Arg0: 69})
	full, _ := readFrames(t, c, 1)

	c.Dispatch(chipseq.Command{Kind: chipseq.CmdVolume, Arg0: 0})
	muted, _ := readFrames(t, c, 1)
	if muted[0] != 0 {
		t.Fatalf("volume 0: have %d, want 0", muted[0])
	}

	c.Dispatch(chipseq.Command{Kind: chipseq.CmdVolume, Arg0: 500})
	c.Dispatch(chipseq.Command{Kind: chipseq.CmdPhaseReset})
	clamped, _ := readFrames(t, c, 1)
	if clamped[0] != full[0] {
		t.Fatalf("clamped volume: have %d, want %d", clamped[0], full[0])
	}
}

func TestChipIgnoresUnknownChannels(t *testing.T) {
	c := New(Config{NumChannels: 2})
	if v := c.Dispatch(chipseq.Command{Kind: chipseq.CmdNoteOn, Channel: 5, Arg0: 60}); v != 0 {
		t.Fatalf("dispatch result: have %d, want 0", v)
	}
	if c.VolumeMax(0) != VolumeMax {
		t.Fatalf("volume max: have %d, want %d", c.VolumeMax(0), VolumeMax)
	}
}

type chipRenderer struct {
	chip  *Chip
	calls []int
}

func (r *chipRenderer) NextBuffer(frames int) {
	r.calls = append(r.calls, frames)
	r.chip.Acquire(frames)
}

func TestReader(t *testing.T) {
	c := New(Config{NumChannels: 1})
	renderer := &chipRenderer{chip: c}
	r := NewReader(renderer, c)

	b := make([]byte, 402)
	n, err := r.Read(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 400 {
		t.Fatalf("read %d bytes, want 400", n)
	}
	if len(renderer.calls) != 1 || renderer.calls[0] != 100 {
		t.Fatalf("renderer calls: %v", renderer.calls)
	}

	// A partial read leaves frames for the next call.
	c.Acquire(10)
	n, _ = r.Read(make([]byte, 16))
	if n != 16 || c.Buffered() != 6 {
		t.Fatalf("partial read: n=%d buffered=%d", n, c.Buffered())
	}
	n, _ = r.Read(make([]byte, 40))
	if n != 40 || len(renderer.calls) != 2 || renderer.calls[1] != 4 {
		t.Fatalf("refill: n=%d calls=%v", n, renderer.calls)
	}

	if n, _ := r.Read(make([]byte, 3)); n != 0 {
		t.Fatalf("short buffer read: have %d, want 0", n)
	}
}
