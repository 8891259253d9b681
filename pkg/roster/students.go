package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

var studentColumns = []string{
	"matrikelnummer", "name", "email",
	"gruppe_prio1", "gruppe_prio2",
	"klinik_prio1", "klinik_prio2", "klinik_prio3",
}

// RowErrors aggregates every row-level violation found in one table scan, so
// a user can fix all problems in a single pass.
type RowErrors struct {
	Prefix string
	Lines  []string
}

func (e *RowErrors) Error() string {
	return e.Prefix + "\n- " + strings.Join(e.Lines, "\n- ")
}

// ParseStudents reads and validates the student table against the clinic set.
// Unlike the clinic table, violations are collected across all rows and
// surfaced together. The returned list is sorted by numeric matriculation
// number ascending.
func ParseStudents(r io.Reader, clinics *ClinicSet, requireOutside bool) ([]*models.Student, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("'studierende.csv' has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading 'studierende.csv': %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	var missing []string
	for _, c := range studentColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("'studierende.csv' is missing columns: %s", strings.Join(missing, ", "))
	}

	groupSet := make(map[string]bool, len(clinics.Groups))
	for _, g := range clinics.Groups {
		groupSet[g] = true
	}

	var students []*models.Student
	seen := make(map[string]bool)
	var errs []string
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			errs = append(errs, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		rawMatNr := field(rec, cols["matrikelnummer"])
		matnr := strings.TrimSpace(rawMatNr)
		if !isDigits(matnr) {
			errs = append(errs, fmt.Sprintf("row %d: invalid matrikelnummer %q", row, rawMatNr))
			continue
		}
		if seen[matnr] {
			errs = append(errs, fmt.Sprintf("row %d: duplicate matrikelnummer %q", row, matnr))
			continue
		}
		s := &models.Student{
			MatNr:       matnr,
			Name:        strings.TrimSpace(field(rec, cols["name"])),
			Email:       strings.TrimSpace(field(rec, cols["email"])),
			GroupPrio1:  NormalizeGroup(field(rec, cols["gruppe_prio1"])),
			GroupPrio2:  NormalizeGroup(field(rec, cols["gruppe_prio2"])),
			ClinicPrio1: strings.TrimSpace(field(rec, cols["klinik_prio1"])),
			ClinicPrio2: strings.TrimSpace(field(rec, cols["klinik_prio2"])),
			ClinicPrio3: strings.TrimSpace(field(rec, cols["klinik_prio3"])),
		}
		issues := checkStudent(s, clinics, groupSet, requireOutside, fmt.Sprintf("row %d", row))
		if len(issues) > 0 {
			errs = append(errs, issues...)
			if !groupSet[s.GroupPrio1] || (s.GroupPrio2 != "" && !groupSet[s.GroupPrio2]) {
				// Group violations invalidate the whole row.
				continue
			}
		}
		seen[matnr] = true
		students = append(students, s)
	}
	if len(errs) > 0 {
		return nil, &RowErrors{Prefix: "input errors in 'studierende.csv':", Lines: errs}
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("'studierende.csv' contains no data")
	}
	sortStudents(students)
	return students, nil
}

// ValidateStudents normalizes and validates pre-parsed student records (the
// JSON adapter path) and returns them sorted by numeric matriculation number.
func ValidateStudents(in []models.Student, clinics *ClinicSet, requireOutside bool) ([]*models.Student, error) {
	groupSet := make(map[string]bool, len(clinics.Groups))
	for _, g := range clinics.Groups {
		groupSet[g] = true
	}
	var students []*models.Student
	seen := make(map[string]bool)
	var errs []string
	for i := range in {
		s := in[i]
		where := fmt.Sprintf("student %d", i+1)
		s.MatNr = strings.TrimSpace(s.MatNr)
		s.Name = strings.TrimSpace(s.Name)
		s.Email = strings.TrimSpace(s.Email)
		s.GroupPrio1 = NormalizeGroup(s.GroupPrio1)
		s.GroupPrio2 = NormalizeGroup(s.GroupPrio2)
		s.ClinicPrio1 = strings.TrimSpace(s.ClinicPrio1)
		s.ClinicPrio2 = strings.TrimSpace(s.ClinicPrio2)
		s.ClinicPrio3 = strings.TrimSpace(s.ClinicPrio3)
		if !isDigits(s.MatNr) {
			errs = append(errs, fmt.Sprintf("%s: invalid matrikelnummer %q", where, s.MatNr))
			continue
		}
		if seen[s.MatNr] {
			errs = append(errs, fmt.Sprintf("%s: duplicate matrikelnummer %q", where, s.MatNr))
			continue
		}
		if issues := checkStudent(&s, clinics, groupSet, requireOutside, where); len(issues) > 0 {
			errs = append(errs, issues...)
			continue
		}
		seen[s.MatNr] = true
		students = append(students, &s)
	}
	if len(errs) > 0 {
		return nil, &RowErrors{Prefix: "input errors in students:", Lines: errs}
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("at least one student is required")
	}
	sortStudents(students)
	return students, nil
}

// checkStudent validates the preference fields of one normalized record. A
// group violation stops further checks for the record; clinic reference
// violations are all reported.
func checkStudent(s *models.Student, clinics *ClinicSet, groupSet map[string]bool, requireOutside bool, where string) []string {
	groupList := strings.Join(clinics.Groups, "/")
	if !groupSet[s.GroupPrio1] {
		return []string{fmt.Sprintf("%s: gruppe_prio1 must be one of %s (got %q)", where, groupList, s.GroupPrio1)}
	}
	if s.GroupPrio2 != "" && !groupSet[s.GroupPrio2] {
		return []string{fmt.Sprintf("%s: gruppe_prio2 must be one of %s or empty (got %q)", where, groupList, s.GroupPrio2)}
	}
	var issues []string
	for _, c := range []string{s.ClinicPrio1, s.ClinicPrio2, s.ClinicPrio3} {
		if c == "" {
			continue
		}
		if _, ok := clinics.ByID[c]; !ok {
			issues = append(issues, fmt.Sprintf("%s: unknown klinik_id %q in clinic preferences", where, c))
		}
	}
	if requireOutside && !hasOutsidePreference(s, clinics.ByID) {
		issues = append(issues, fmt.Sprintf("%s: at least one clinic preference outside Giessen is required", where))
	}
	return issues
}

// hasOutsidePreference reports whether any referenced clinic lies outside the
// home city.
func hasOutsidePreference(s *models.Student, byID map[string]*models.Clinic) bool {
	for _, c := range []string{s.ClinicPrio1, s.ClinicPrio2, s.ClinicPrio3} {
		if c == "" {
			continue
		}
		if clinic, ok := byID[c]; ok && !clinic.IsGiessen {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortStudents(students []*models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return lessNumeric(students[i].MatNr, students[j].MatNr)
	})
}

// lessNumeric compares two digit strings by numeric value without an integer
// parse, so arbitrarily long matriculation numbers sort correctly.
func lessNumeric(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
