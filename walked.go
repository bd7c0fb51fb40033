package chipseq

// walkedSet marks every (order, row) pair played since the last reset.
// Playing a marked row again means the song has looped.
type walkedSet struct {
	bits []uint64
	rows int
}

func (w *walkedSet) Reset(orders, rows int) {
	n := (orders*rows + 63) / 64
	if cap(w.bits) < n {
		w.bits = make([]uint64, n)
	}
	w.bits = w.bits[:n]
	w.rows = rows
	w.Clear()
}

func (w *walkedSet) Clear() {
	for i := range w.bits {
		w.bits[i] = 0
	}
}

func (w *walkedSet) Test(order, row int) bool {
	i := order*w.rows + row
	return w.bits[i/64]&(1<<(i%64)) != 0
}

func (w *walkedSet) Set(order, row int) {
	i := order*w.rows + row
	w.bits[i/64] |= 1 << (i % 64)
}
