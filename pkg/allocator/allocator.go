package allocator

import (
	"errors"
	"fmt"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

// ErrNoSeatLeft signals that the unconditional fallback found no free seat for
// a still-unassigned student. The up-front capacity check makes this
// unreachable on valid input; hitting it means the pool bookkeeping is broken,
// not that the input is wrong.
var ErrNoSeatLeft = errors.New("no free seat left for unassigned student")

type pair struct {
	group  string
	clinic string
}

// Assign places every student into a (group, clinic) seat.
//
// Three phases run over the students in matriculation order. Phase 1 walks six
// priority rounds, the cross product of (primary, secondary) group preference
// and the three ranked clinic preferences, each round completing across all
// unassigned students before the next starts. Phase 2 honors a clinic
// preference with any acceptable group. Phase 3 grants the first free seat
// anywhere, scanning groups in discovery order and clinics in input order.
//
// The result maps matriculation number to placement and is total on success.
func Assign(students []*models.Student, clinics []*models.Clinic, groups []string) (map[string]models.Placement, models.Stats, error) {
	var stats models.Stats
	pool := BuildSlotPool(clinics, groups)
	if total := pool.TotalRemaining(); total < len(students) {
		return nil, stats, fmt.Errorf("not enough total capacity: seats=%d, students=%d", total, len(students))
	}
	groupSet := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupSet[g] = true
	}

	assigned := make(map[string]models.Placement, len(students))

	// Phase 1: six priority rounds, breadth-first across students so nobody
	// captures a lower-priority pair while a higher-priority round is open.
	rounds := []func(*models.Student) pair{
		func(s *models.Student) pair { return pair{s.GroupPrio1, s.ClinicPrio1} },
		func(s *models.Student) pair { return pair{s.GroupPrio1, s.ClinicPrio2} },
		func(s *models.Student) pair { return pair{s.GroupPrio1, s.ClinicPrio3} },
		func(s *models.Student) pair { return pair{s.GroupPrio2, s.ClinicPrio1} },
		func(s *models.Student) pair { return pair{s.GroupPrio2, s.ClinicPrio2} },
		func(s *models.Student) pair { return pair{s.GroupPrio2, s.ClinicPrio3} },
	}
	tried := make(map[string]map[pair]bool, len(students))
	for r, round := range rounds {
		for _, s := range students {
			if _, done := assigned[s.MatNr]; done {
				continue
			}
			p := round(s)
			if p.group == "" || p.clinic == "" || !groupSet[p.group] {
				continue
			}
			t := tried[s.MatNr]
			if t == nil {
				t = make(map[pair]bool, len(rounds))
				tried[s.MatNr] = t
			}
			if t[p] {
				// Identical pair already attempted in an earlier round,
				// e.g. when both group preferences coincide.
				continue
			}
			t[p] = true
			if !pool.Take(p.group, p.clinic) {
				continue
			}
			assigned[s.MatNr] = models.Placement{Group: p.group, ClinicID: p.clinic}
			if r < 3 {
				stats.GroupPrio1++
			} else {
				stats.GroupPrio2++
			}
			switch r % 3 {
			case 0:
				stats.ClinicPrio1++
			case 1:
				stats.ClinicPrio2++
			case 2:
				stats.ClinicPrio3++
			}
		}
	}

	// Phase 2: honor a clinic preference with whichever group still has a
	// seat there, preferred groups first. The group preference did not decide
	// the placement, so only the clinic hit is counted.
	for _, s := range students {
		if _, done := assigned[s.MatNr]; done {
			continue
		}
	prefs:
		for _, c := range uniq(s.ClinicPrio1, s.ClinicPrio2, s.ClinicPrio3) {
			for _, g := range uniq(append([]string{s.GroupPrio1, s.GroupPrio2}, groups...)...) {
				if !groupSet[g] || !pool.Take(g, c) {
					continue
				}
				assigned[s.MatNr] = models.Placement{Group: g, ClinicID: c}
				switch c {
				case s.ClinicPrio1:
					stats.ClinicPrio1++
				case s.ClinicPrio2:
					stats.ClinicPrio2++
				case s.ClinicPrio3:
					stats.ClinicPrio3++
				}
				break prefs
			}
		}
	}

	// Phase 3: first free seat anywhere. Must succeed for every remaining
	// student given the up-front capacity check.
	for _, s := range students {
		if _, done := assigned[s.MatNr]; done {
			continue
		}
		placement, ok := takeFirstFree(pool, clinics, groups)
		if !ok {
			return nil, stats, fmt.Errorf("%w (matrikelnummer %s)", ErrNoSeatLeft, s.MatNr)
		}
		assigned[s.MatNr] = placement
	}
	return assigned, stats, nil
}

func takeFirstFree(pool *SlotPool, clinics []*models.Clinic, groups []string) (models.Placement, bool) {
	for _, g := range groups {
		for _, c := range clinics {
			if pool.Take(g, c.ID) {
				return models.Placement{Group: g, ClinicID: c.ID}, true
			}
		}
	}
	return models.Placement{}, false
}

// uniq drops empty strings and duplicates, keeping first-appearance order.
func uniq(values ...string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
