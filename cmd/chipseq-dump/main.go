package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/quasilyte/chipseq"
	"github.com/quasilyte/chipseq/cstream"
)

// This CLI tool inspects command streams.
//
// Without a file argument it exports the built-in demo song
// and works with the result.

type settings struct {
	Disassemble bool
	Ticks       int
	OutputWav   string
	DemoOut     string
	SampleRate  int
	Seconds     float64
	LogLevel    string
	BigEndian   bool
	Force32     bool
}

func main() {
	var s settings
	flag.BoolVar(&s.Disassemble, "dis", false, "Print the disassembly of every channel")
	flag.IntVar(&s.Ticks, "ticks", 0, "Trace the commands of the first N ticks")
	flag.StringVar(&s.OutputWav, "wav", "", "Render the stream into a wav-file")
	flag.StringVar(&s.DemoOut, "demo-out", "", "Write the exported demo stream into a file")
	flag.IntVar(&s.SampleRate, "rate", 44100, "Sample rate for -wav")
	flag.Float64Var(&s.Seconds, "seconds", 30, "Max -wav length in seconds")
	flag.StringVar(&s.LogLevel, "loglevel", "info", "Log level: debug, info, warn or error")
	flag.BoolVar(&s.BigEndian, "be", false, "Export the demo stream as big endian")
	flag.BoolVar(&s.Force32, "wide", false, "Export the demo stream with 32-bit pointers")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: chipseq-dump [flags] [path/to/stream.bin]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(s, flag.Args()); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run(s settings, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return errors.Wrap(err, "parse -loglevel")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	data, err := loadStream(s, args, logger)
	if err != nil {
		return err
	}
	stream, err := cstream.Parse(data)
	if err != nil {
		return errors.Wrap(err, "parse stream")
	}

	printHeader(stream)
	if s.Disassemble {
		if err := printDisassembly(stream); err != nil {
			return err
		}
	}
	if s.Ticks > 0 {
		printTrace(stream, s.Ticks, logger)
	}
	if s.OutputWav != "" {
		if err := renderWav(s, data, stream.NumChannels, logger); err != nil {
			return errors.Wrapf(err, "render %s", s.OutputWav)
		}
	}
	return nil
}

func loadStream(s settings, args []string, logger *slog.Logger) ([]byte, error) {
	if len(args) != 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, errors.Wrap(err, "read stream")
		}
		return data, nil
	}

	data, err := cstream.Export(demoSong(), cstream.ExportConfig{
		Logger:    logger,
		BigEndian: s.BigEndian,
		Force32:   s.Force32,
	})
	if err != nil {
		return nil, errors.Wrap(err, "export demo song")
	}
	if s.DemoOut != "" {
		if err := os.WriteFile(s.DemoOut, data, 0o644); err != nil {
			return nil, errors.Wrap(err, "write demo stream")
		}
	}
	return data, nil
}

func printHeader(s *cstream.Stream) {
	byteOrder := "little endian"
	if s.BigEndian {
		byteOrder = "big endian"
	}
	pointers := "16-bit"
	if s.WidePointers {
		pointers = "32-bit"
	}
	color.Blue("stream: %d bytes, %d channels, %s, %s pointers", len(s.Data), s.NumChannels, byteOrder, pointers)
	fmt.Printf("  fast delays:      %v\n", s.FastDelays)
	fmt.Printf("  fast instruments: %v\n", s.FastInstruments)
	fmt.Printf("  fast volumes:     %v\n", s.FastVolumes)
	fmt.Printf("  fast commands:    %v\n", s.FastCommands)
}

func printDisassembly(s *cstream.Stream) error {
	for ch := 0; ch < s.NumChannels; ch++ {
		color.Blue("channel %d: start=%#04x stack=%d", ch, s.Starts[ch], s.StackDepths[ch])
		err := cstream.Disassemble(s, ch, func(ins cstream.Instruction) bool {
			addr := fmt.Sprintf("  %06x  %02x", ins.Addr, ins.Op)
			switch ins.Kind {
			case cstream.InstrCommand:
				fmt.Printf("%s  %s\n", addr, color.YellowString(ins.String()))
			case cstream.InstrWait, cstream.InstrNop:
				fmt.Printf("%s  %s\n", addr, ins.String())
			default:
				fmt.Printf("%s  %s\n", addr, color.CyanString(ins.String()))
			}
			return true
		})
		if err != nil {
			return errors.Wrapf(err, "disassemble channel %d", ch)
		}
	}
	return nil
}

func printTrace(s *cstream.Stream, ticks int, logger *slog.Logger) {
	rec := &chipseq.Recorder{}
	p := cstream.NewStreamPlayer(s, cstream.Config{
		Dispatcher: rec,
		Logger:     logger,
	})
	for tick := 0; tick < ticks; tick++ {
		rec.Tick = tick
		if !p.Tick() {
			color.Red("%6d  all channels halted", tick)
			break
		}
	}

	prevTick := -1
	for _, c := range rec.Commands {
		prefix := "      "
		if c.Tick != prevTick {
			prefix = fmt.Sprintf("%6d", c.Tick)
			prevTick = c.Tick
		}
		fmt.Printf("%s  ch%-3d %s\n", prefix, c.Channel, color.YellowString(c.Command.String()))
	}

	for ch := 0; ch < p.NumChannels(); ch++ {
		st := p.ChannelState(ch)
		if st.Err != nil {
			color.Red("channel %d: halted: %v", ch, st.Err)
		}
	}
}
