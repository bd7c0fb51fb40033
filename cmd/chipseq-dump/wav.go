package main

import (
	"encoding/binary"
	"log/slog"
	"math"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"

	"github.com/quasilyte/chipseq/engine"
	"github.com/quasilyte/chipseq/refchip"
)

// streamer pulls the engine output through the reference chip
// until the command stream ends or the length limit is reached.
type streamer struct {
	engine *engine.Engine
	chip   *refchip.Chip

	framesLeft int
	buf        []byte
	err        error
}

func (s *streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.framesLeft <= 0 || !s.engine.Streaming() {
		return 0, false
	}
	frames := min(len(samples), s.framesLeft)
	if cap(s.buf) < frames*4 {
		s.buf = make([]byte, frames*4)
	}
	b := s.buf[:frames*4]

	s.engine.NextBuffer(frames)
	if _, err := s.chip.Read(b); err != nil {
		s.err = err
		return 0, false
	}
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(b[i*4:]))
		right := int16(binary.LittleEndian.Uint16(b[i*4+2:]))
		samples[i][0] = float64(left) / math.MaxInt16
		samples[i][1] = float64(right) / math.MaxInt16
	}
	s.framesLeft -= frames
	return frames, true
}

func (s *streamer) Err() error { return s.err }

func renderWav(s settings, data []byte, numChannels int, logger *slog.Logger) error {
	chip := refchip.New(refchip.Config{
		SampleRate:  s.SampleRate,
		NumChannels: numChannels,
	})
	e := engine.New(engine.Config{
		SampleRate: s.SampleRate,
		Dispatcher: chip,
		Logger:     logger,
	})
	if err := e.PlayStream(data); err != nil {
		return err
	}

	f, err := os.Create(s.OutputWav)
	if err != nil {
		return err
	}
	defer f.Close()

	out := &streamer{
		engine:     e,
		chip:       chip,
		framesLeft: int(s.Seconds * float64(s.SampleRate)),
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(s.SampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	if err := wav.Encode(f, out, format); err != nil {
		return errors.Wrap(err, "encode wav")
	}
	logger.Info("wav file written",
		slog.String("path", s.OutputWav),
		slog.Duration("length", format.SampleRate.D(int(s.Seconds*float64(s.SampleRate))-out.framesLeft)))
	return nil
}
