package allocator

import "github.com/klipps/zuteilung-api-go/pkg/models"

type slotKey struct {
	group    string
	clinicID string
}

// SlotPool tracks the remaining seats per (group, clinic) pair. A pair with no
// seats left is removed from the map entirely, so presence implies
// availability. The pool is built fresh per allocation run and consumed
// synchronously by a single caller.
type SlotPool struct {
	remaining map[slotKey]int
}

// BuildSlotPool expands the per-group clinic capacities into a seat pool.
func BuildSlotPool(clinics []*models.Clinic, groups []string) *SlotPool {
	p := &SlotPool{remaining: make(map[slotKey]int)}
	for _, g := range groups {
		for _, c := range clinics {
			if n := c.Capacity[g]; n > 0 {
				p.remaining[slotKey{g, c.ID}] += n
			}
		}
	}
	return p
}

// Take consumes one seat for the pair if any remains.
func (p *SlotPool) Take(group, clinicID string) bool {
	k := slotKey{group, clinicID}
	n, ok := p.remaining[k]
	if !ok {
		return false
	}
	if n == 1 {
		delete(p.remaining, k)
	} else {
		p.remaining[k] = n - 1
	}
	return true
}

// TotalRemaining sums the seats left across all pairs.
func (p *SlotPool) TotalRemaining() int {
	total := 0
	for _, n := range p.remaining {
		total += n
	}
	return total
}
