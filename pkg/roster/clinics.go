package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

const capPrefix = "cap_"

var clinicColumns = []string{"klinik_id", "klinik_name", "stadt", "ist_giessen"}

// ClinicSet is the validated clinic table: rows in input order, a lookup by
// id, and the group labels discovered from the capacity columns.
type ClinicSet struct {
	Clinics []*models.Clinic
	ByID    map[string]*models.Clinic
	Groups  []string
}

// ParseBool interprets the boolean-like strings used by the clinic table.
// German spellings are accepted alongside true/false; empty means false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "wahr", "ja", "j", "1":
		return true
	}
	return false
}

// NormalizeGroup trims and uppercases a group label.
func NormalizeGroup(g string) string {
	return strings.ToUpper(strings.TrimSpace(g))
}

// stripBOM removes a leading UTF-8 byte-order mark if present.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

// field returns the record value at index i, tolerating short records.
func field(rec []string, i int) string {
	if i >= 0 && i < len(rec) {
		return rec[i]
	}
	return ""
}

// ParseClinics reads and validates the clinic table. Clinic rows fail fast on
// the first violation; the row number in the message counts the header as
// row 1. Group labels are discovered from the cap_* columns in order of first
// appearance.
func ParseClinics(r io.Reader) (*ClinicSet, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("'kliniken.csv' has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading 'kliniken.csv': %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	var missing []string
	for _, c := range clinicColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("'kliniken.csv' is missing columns: %s", strings.Join(missing, ", "))
	}

	// Capacity columns double as the group declaration. A duplicate suffix
	// re-uses the already discovered group; the later column wins.
	var capCols []int
	groupByCol := make(map[int]string)
	seen := make(map[string]bool)
	var groups []string
	for i, h := range header {
		if !strings.HasPrefix(h, capPrefix) || len(h) <= len(capPrefix) {
			continue
		}
		g := NormalizeGroup(h[len(capPrefix):])
		if g == "" {
			continue
		}
		capCols = append(capCols, i)
		groupByCol[i] = g
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	if len(capCols) == 0 {
		return nil, fmt.Errorf("'kliniken.csv' has no capacity columns (expected columns like cap_A, cap_B, ...)")
	}

	set := &ClinicSet{ByID: make(map[string]*models.Clinic), Groups: groups}
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("'kliniken.csv' row %d: %w", row, err)
		}
		id := strings.TrimSpace(field(rec, cols["klinik_id"]))
		if id == "" {
			return nil, fmt.Errorf("'kliniken.csv': empty klinik_id in row %d", row)
		}
		if _, dup := set.ByID[id]; dup {
			return nil, fmt.Errorf("'kliniken.csv': duplicate klinik_id %q in row %d", id, row)
		}
		capacity := make(map[string]int, len(groups))
		for _, ci := range capCols {
			raw := strings.TrimSpace(field(rec, ci))
			if raw == "" {
				raw = "0"
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("'kliniken.csv': capacity %s must be an integer (klinik_id %s, row %d)", header[ci], id, row)
			}
			if n < 0 {
				return nil, fmt.Errorf("'kliniken.csv': capacity %s must not be negative (klinik_id %s, row %d)", header[ci], id, row)
			}
			capacity[groupByCol[ci]] = n
		}
		clinic := &models.Clinic{
			ID:        id,
			Name:      strings.TrimSpace(field(rec, cols["klinik_name"])),
			City:      strings.TrimSpace(field(rec, cols["stadt"])),
			IsGiessen: ParseBool(field(rec, cols["ist_giessen"])),
			Capacity:  capacity,
			Order:     len(set.Clinics),
		}
		set.Clinics = append(set.Clinics, clinic)
		set.ByID[id] = clinic
	}
	if len(set.Clinics) == 0 {
		return nil, fmt.Errorf("'kliniken.csv' contains no data")
	}
	return set, nil
}

// BuildClinicSet validates pre-parsed clinic records (the JSON adapter path)
// into the same shape ParseClinics produces. When no explicit group order is
// given, groups are discovered from each clinic's capacity keys in clinic
// order, keys sorted alphabetically within a clinic so discovery stays
// deterministic.
func BuildClinicSet(clinics []models.Clinic, groups []string) (*ClinicSet, error) {
	if len(clinics) == 0 {
		return nil, fmt.Errorf("at least one clinic is required")
	}
	set := &ClinicSet{ByID: make(map[string]*models.Clinic, len(clinics))}
	seen := make(map[string]bool)
	for _, g := range groups {
		g = NormalizeGroup(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		set.Groups = append(set.Groups, g)
	}
	for i := range clinics {
		c := clinics[i]
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, fmt.Errorf("clinic %d: empty klinik_id", i+1)
		}
		if _, dup := set.ByID[c.ID]; dup {
			return nil, fmt.Errorf("clinic %d: duplicate klinik_id %q", i+1, c.ID)
		}
		capacity := make(map[string]int, len(c.Capacity))
		var keys []string
		for g := range c.Capacity {
			keys = append(keys, g)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n := c.Capacity[k]
			g := NormalizeGroup(k)
			if g == "" {
				continue
			}
			if n < 0 {
				return nil, fmt.Errorf("clinic %s: capacity for group %s must not be negative", c.ID, g)
			}
			capacity[g] = n
			if len(groups) == 0 && !seen[g] {
				seen[g] = true
				set.Groups = append(set.Groups, g)
			}
		}
		c.Capacity = capacity
		c.Order = len(set.Clinics)
		set.Clinics = append(set.Clinics, &c)
		set.ByID[c.ID] = &c
	}
	if len(set.Groups) == 0 {
		return nil, fmt.Errorf("no groups declared: clinics carry no capacity entries")
	}
	return set, nil
}
