package macro

// Interpreter runs every macro slot of a single voice.
//
// The slots are a fixed array indexed by Param; only the slots bound
// to a non-empty source are kept in the active list and advanced.
type Interpreter struct {
	sources *Table
	slots   [NumParams]Macro

	active    [NumParams]Param
	numActive int

	ctx      Context
	released bool
}

// Init binds the interpreter to an instrument macro table.
// A nil table unbinds every slot.
//
// ctx.Linger only applies to the volume macro.
func (it *Interpreter) Init(sources *Table, ctx Context) {
	it.sources = sources
	it.ctx = ctx
	it.released = false
	it.numActive = 0
	for i := range it.slots {
		m := &it.slots[i]
		*m = Macro{masked: m.masked}
		if sources == nil || sources[i].IsEmpty() {
			continue
		}
		m.Prepare(sources[i], it.slotContext(Param(i)))
		it.active[it.numActive] = Param(i)
		it.numActive++
	}
}

func (it *Interpreter) slotContext(p Param) Context {
	return Context{Linger: it.ctx.Linger && p == ParamVol}
}

// Reset unbinds every slot and drops the masks.
func (it *Interpreter) Reset() {
	*it = Interpreter{}
}

// Next advances all active macros by one tick.
func (it *Interpreter) Next(isTickBoundary bool) {
	for _, p := range it.active[:it.numActive] {
		it.slots[p].Advance(it.sources[p], it.released, isTickBoundary)
	}
}

// Release switches every macro to its post-release behavior.
func (it *Interpreter) Release() {
	it.released = true
}

func (it *Interpreter) Released() bool { return it.released }

// Bound reports whether any macro slot is active.
func (it *Interpreter) Bound() bool { return it.numActive != 0 }

// Get returns the run state of the slot.
func (it *Interpreter) Get(p Param) *Macro {
	if p >= NumParams {
		return &Macro{}
	}
	return &it.slots[p]
}

// Mask suppresses (enabled=true) or restores a macro slot.
// The slot keeps its position while masked.
func (it *Interpreter) Mask(p Param, enabled bool) {
	if p >= NumParams {
		return
	}
	it.slots[p].masked = enabled
}

// Restart re-prepares a slot from the start of its source.
func (it *Interpreter) Restart(p Param) {
	if p >= NumParams || it.sources == nil {
		return
	}
	src := it.sources[p]
	if src.IsEmpty() {
		return
	}
	it.slots[p].Prepare(src, it.slotContext(p))
	for _, active := range it.active[:it.numActive] {
		if active == p {
			return
		}
	}
	it.active[it.numActive] = p
	it.numActive++
}
