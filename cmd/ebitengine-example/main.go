package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/chipseq/cstream"
	"github.com/quasilyte/chipseq/engine"
	"github.com/quasilyte/chipseq/refchip"
)

// This simple CLI tool plays the specified command stream using Ebitengine audio player.
//
// Streams can be produced with chipseq-dump -demo-out.

func main() {
	flag.Usage = func() {
		fmt.Printf("usage: go run ./cmd/ebitengine-example path/to/stream.bin\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) < 1 {
		panic("expected at least 1 command-line argument")
	}
	filename := flag.Args()[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		panic(fmt.Errorf("read stream file: %v", err))
	}
	stream, err := cstream.Parse(data)
	if err != nil {
		panic(fmt.Errorf("parsing stream file: %v", err))
	}

	// The engine drives the chip; the reader pulls the rendered PCM
	// as the audio player asks for more bytes.
	sampleRate := 44100
	chip := refchip.New(refchip.Config{
		SampleRate:  sampleRate,
		NumChannels: stream.NumChannels,
	})
	e := engine.New(engine.Config{
		SampleRate: sampleRate,
		Dispatcher: chip,
	})

	// Create a sound player using the Ebitengine audio context.
	// You can have multiple players, but only one audio context.
	// See Ebitengine docs to learn more.
	audioContext := audio.NewContext(sampleRate)
	player, err := audioContext.NewPlayer(refchip.NewReader(e, chip))
	if err != nil {
		panic(err)
	}

	g := &game{
		player:   player,
		engine:   e,
		data:     data,
		filename: filename,
		paused:   true,
	}
	if err := ebiten.RunGame(g); err != nil {
		panic(err)
	}
}

type game struct {
	player *audio.Player
	engine *engine.Engine

	data     []byte
	filename string
	paused   bool
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
		if g.player.IsPlaying() {
			g.player.Pause()
		} else {
			if !g.engine.Streaming() {
				if err := g.engine.PlayStream(g.data); err != nil {
					return err
				}
			}
			g.player.Play()
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.engine.PlayStream(g.data); err != nil {
			return err
		}
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	switch {
	case g.paused:
		ebitenutil.DebugPrint(screen, "Paused... press SPACE")
	case !g.engine.Streaming():
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Finished %s, press SPACE twice or R to replay", g.filename))
	default:
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Playing %s... (R to restart)", g.filename))
	}
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}
