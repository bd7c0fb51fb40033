package chipseq

// TimedCommand is a Command stamped with the tick it was received on.
type TimedCommand struct {
	Tick int
	Command
}

// Recorder is a Dispatcher that keeps every command it receives.
//
// The owner is responsible for advancing the Tick counter;
// a typical loop calls Tick() on a player and then r.Tick++.
type Recorder struct {
	Tick     int
	Commands []TimedCommand
}

func (r *Recorder) Dispatch(c Command) int {
	r.Commands = append(r.Commands, TimedCommand{Tick: r.Tick, Command: c})
	return 0
}

// Reset drops the recorded commands and rewinds the tick counter.
func (r *Recorder) Reset() {
	r.Tick = 0
	r.Commands = r.Commands[:0]
}

// Channel returns the recorded commands addressed to channel ch.
func (r *Recorder) Channel(ch int) []TimedCommand {
	var out []TimedCommand
	for _, c := range r.Commands {
		if c.Channel == ch {
			out = append(out, c)
		}
	}
	return out
}

// At returns the commands recorded during the given tick.
func (r *Recorder) At(tick int) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Tick == tick {
			out = append(out, c.Command)
		}
	}
	return out
}
