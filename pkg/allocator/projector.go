package allocator

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

// OutputColumns is the fixed header of the output table.
var OutputColumns = []string{
	"matrikelnummer", "name", "email",
	"zugeordnet_gruppe", "zugeordnet_klinik_id", "zugeordnet_klinik_name",
	"zugeordnet_stadt", "ist_giessen",
	"met_gruppe_prio", "met_klinik_prio",
}

// Project builds one output row per student, mirroring the students' order,
// with markers for which group- and clinic-preference rank the grant matches.
func Project(students []*models.Student, assigned map[string]models.Placement, byID map[string]*models.Clinic) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(students))
	for _, s := range students {
		p := assigned[s.MatNr]
		clinic := byID[p.ClinicID]

		metGroup := "none"
		switch p.Group {
		case s.GroupPrio1:
			metGroup = "1"
		case s.GroupPrio2:
			metGroup = "2"
		}
		metClinic := "none"
		switch p.ClinicID {
		case s.ClinicPrio1:
			metClinic = "1"
		case s.ClinicPrio2:
			metClinic = "2"
		case s.ClinicPrio3:
			metClinic = "3"
		}

		rows = append(rows, models.ResultRow{
			MatNr:         s.MatNr,
			Name:          s.Name,
			Email:         s.Email,
			Group:         p.Group,
			ClinicID:      p.ClinicID,
			ClinicName:    clinic.Name,
			City:          clinic.City,
			IsGiessen:     clinic.IsGiessen,
			MetGroupPrio:  metGroup,
			MetClinicPrio: metClinic,
		})
	}
	return rows
}

// WriteCSV serializes result rows with the fixed output header.
func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.MatNr, r.Name, r.Email,
			r.Group, r.ClinicID, r.ClinicName,
			r.City, strconv.FormatBool(r.IsGiessen),
			r.MetGroupPrio, r.MetClinicPrio,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
