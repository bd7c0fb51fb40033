package macro

// Context carries the voice-level settings a macro captures when it is prepared.
type Context struct {
	// Linger keeps the last value alive after a non-looping macro ends.
	Linger bool
}

type adsrStage uint8

const (
	adsrAttack adsrStage = iota
	adsrDecay
	adsrSustain
	adsrRelease
	adsrEnd
)

// Macro is the run state of one macro slot.
//
// The Source it runs is passed to every call instead of being stored,
// so a single Source can drive any number of voices.
type Macro struct {
	pos     int
	lastPos int
	lfoPos  int
	delay   int
	val     int
	stage   adsrStage
	kind    Kind
	mode    uint8

	has       bool
	had       bool
	actualHad bool
	will      bool
	finished  bool

	masked        bool
	linger        bool
	activeRelease bool
	releaseJumped bool
}

// Prepare binds the macro to a source and resets its run state.
// The mask state is preserved.
func (m *Macro) Prepare(src *Source, ctx Context) {
	*m = Macro{masked: m.masked}
	if src.IsEmpty() {
		return
	}
	m.kind = src.Kind()
	m.mode = src.Mode
	m.activeRelease = src.ActiveRelease()
	m.linger = ctx.Linger
	m.delay = src.Delay
	m.has = true
	m.had = true
	m.actualHad = true
	m.will = true
	if m.kind == KindLFO {
		m.lfoPos = src.param(ValueLFOPhase) & 1023
	}
}

// Advance runs one macro step.
//
// Nothing happens on sub-ticks (isTickBoundary=false) and while the macro is masked;
// Had() reports false in both cases.
func (m *Macro) Advance(src *Source, released, isTickBoundary bool) {
	if !isTickBoundary {
		m.had = false
		return
	}
	if m.masked {
		m.had = false
		return
	}
	if m.delay > 0 {
		m.delay--
		m.had = false
		return
	}
	if src.IsEmpty() {
		m.has = false
	}

	m.finished = m.actualHad != m.has
	m.actualHad = m.has
	m.had = m.actualHad
	if !m.has {
		return
	}

	m.delay = src.speed() - 1

	switch m.kind {
	case KindADSR:
		m.stepADSR(src, released)
	case KindLFO:
		m.stepLFO(src)
	default:
		m.stepSequence(src, released)
	}
}

func (m *Macro) stepSequence(src *Source, released bool) {
	n := src.Len()
	rel := point(src.Release, n)
	loop := point(src.Loop, n)

	if released && m.activeRelease && !m.releaseJumped && rel < n && m.pos < rel {
		m.pos = rel
		m.releaseJumped = true
	}
	if m.pos >= n {
		m.pos = n - 1
	}

	m.lastPos = m.pos
	m.val = src.Values[m.pos]
	m.pos++

	if m.pos > rel && !released {
		if loop < n && loop < rel {
			m.pos = loop
		} else {
			m.pos--
		}
	}
	if m.pos >= n {
		switch {
		case loop < n && (loop >= rel || rel >= n):
			m.pos = loop
		case m.linger:
			m.pos--
		default:
			m.has = false
		}
	}
}

func (m *Macro) stepADSR(src *Source, released bool) {
	if released && m.stage < adsrRelease {
		m.stage = adsrRelease
	}

	switch m.stage {
	case adsrAttack:
		m.pos += src.param(ValueAR)
		if m.pos > 255 {
			m.pos = 255
			m.stage = adsrDecay
			m.delay = src.param(ValueHT)
		}
	case adsrDecay:
		m.pos -= src.param(ValueDR)
		if sl := src.param(ValueSL); m.pos <= sl {
			m.pos = sl
			m.stage = adsrSustain
			m.delay = src.param(ValueST)
		}
	case adsrSustain:
		m.pos -= src.param(ValueSR)
		if m.pos < 0 {
			m.pos = 0
			m.stage = adsrEnd
		}
	case adsrRelease:
		m.pos -= src.param(ValueRR)
		if m.pos < 0 {
			m.pos = 0
			m.stage = adsrEnd
		}
	case adsrEnd:
		m.pos = 0
		if !m.linger {
			m.has = false
		}
	}

	m.val = interpolate(src.param(ValueLow), src.param(ValueHigh), m.pos)
}

func (m *Macro) stepLFO(src *Source) {
	var out int
	switch src.param(ValueLFOWave) & 3 {
	case LFOTriangle:
		if m.lfoPos&512 != 0 {
			out = (1023 - m.lfoPos) >> 1
		} else {
			out = m.lfoPos >> 1
		}
	case LFOSaw:
		out = m.lfoPos >> 2
	case LFOPulse:
		if m.lfoPos&512 != 0 {
			out = 255
		}
	}
	m.val = interpolate(src.param(ValueLow), src.param(ValueHigh), out)
	m.lfoPos = (m.lfoPos + src.param(ValueLFOSpeed)) & 1023
}

// interpolate maps p in [0, 255] onto [low, high].
func interpolate(low, high, p int) int {
	if high > low {
		return low + ((p + (high-low)*p) >> 8)
	}
	q := 255 - p
	return high + ((q + (low-high)*q) >> 8)
}

// Value is the last produced value.
func (m *Macro) Value() int { return m.val }

// Had reports whether the last Advance produced a new value.
func (m *Macro) Had() bool { return m.had }

// Has reports whether the macro is still running.
func (m *Macro) Has() bool { return m.has }

// Will reports whether the macro was bound to a source that can produce values.
func (m *Macro) Will() bool { return m.will }

// Finished reports whether the last Advance observed the running state edge.
func (m *Macro) Finished() bool { return m.finished }

func (m *Macro) Pos() int { return m.pos }
func (m *Macro) LastPos() int { return m.lastPos }
func (m *Macro) Masked() bool { return m.masked }
func (m *Macro) Mode() uint8 { return m.mode }
func (m *Macro) Kind() Kind { return m.kind }
