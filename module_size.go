package chipseq

import (
	"unsafe"
)

func moduleSize(m *module) uint {
	memoryUsage := 0
	seen := make(map[*pattern]struct{}, len(m.orders))
	for _, p := range m.orders {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		memoryUsage += int(unsafe.Sizeof(pattern{}))
		memoryUsage += len(p.rows) * int(unsafe.Sizeof(patternRow{}))
		for _, r := range p.rows {
			memoryUsage += len(r.effects) * int(unsafe.Sizeof(r.effects[0]))
		}
	}
	memoryUsage += len(m.orders) * int(unsafe.Sizeof(m.orders[0]))

	return uint(memoryUsage)
}
