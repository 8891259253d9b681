package models

// Clinic represents a placement site with per-group seat capacities
type Clinic struct {
	ID        string         `json:"klinik_id"`
	Name      string         `json:"klinik_name"`
	City      string         `json:"stadt"`
	IsGiessen bool           `json:"ist_giessen"`
	Capacity  map[string]int `json:"capacity"`
	Order     int            `json:"-"` // original input row, used as tie-break
}

// Student represents one validated roster entry
type Student struct {
	MatNr       string `json:"matrikelnummer"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	GroupPrio1  string `json:"gruppe_prio1"`
	GroupPrio2  string `json:"gruppe_prio2,omitempty"`
	ClinicPrio1 string `json:"klinik_prio1,omitempty"`
	ClinicPrio2 string `json:"klinik_prio2,omitempty"`
	ClinicPrio3 string `json:"klinik_prio3,omitempty"`
}

// Placement is the (group, clinic) seat granted to one student
type Placement struct {
	Group    string `json:"group"`
	ClinicID string `json:"klinik_id"`
}

// Stats counts how many students had each preference rank satisfied
type Stats struct {
	GroupPrio1  int `json:"gruppe_prio1"`
	GroupPrio2  int `json:"gruppe_prio2"`
	ClinicPrio1 int `json:"klinik_prio1"`
	ClinicPrio2 int `json:"klinik_prio2"`
	ClinicPrio3 int `json:"klinik_prio3"`
}

// ResultRow is one line of the output table
type ResultRow struct {
	MatNr         string `json:"matrikelnummer"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Group         string `json:"zugeordnet_gruppe"`
	ClinicID      string `json:"zugeordnet_klinik_id"`
	ClinicName    string `json:"zugeordnet_klinik_name"`
	City          string `json:"zugeordnet_stadt"`
	IsGiessen     bool   `json:"ist_giessen"`
	MetGroupPrio  string `json:"met_gruppe_prio"` // "1", "2" or "none"
	MetClinicPrio string `json:"met_klinik_prio"` // "1", "2", "3" or "none"
}

// AllocationInput is the data structure for the JSON allocation endpoint
type AllocationInput struct {
	Clinics        []Clinic  `json:"clinics"`
	Students       []Student `json:"students"`
	Groups         []string  `json:"groups,omitempty"`
	RequireOutside bool      `json:"require_outside"`
}

// AllocationResponse is the data structure for the allocation result
type AllocationResponse struct {
	Groups       []string    `json:"groups"`
	StudentCount int         `json:"student_count"`
	Rows         []ResultRow `json:"rows"`
	Stats        Stats       `json:"stats"`
}
