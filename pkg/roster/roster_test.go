package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

const clinicsCSV = "klinik_id,klinik_name,stadt,ist_giessen,cap_a,cap_B\n" +
	"K1,Uniklinik,Giessen,wahr,2,1\n" +
	"K2,Stadtklinik,Marburg,nein,,3\n"

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "WAHR", "ja", "J", "1", " ja "} {
		assert.True(t, ParseBool(v), v)
	}
	for _, v := range []string{"false", "falsch", "nein", "n", "0", "", "maybe"} {
		assert.False(t, ParseBool(v), v)
	}
}

func TestParseClinics_DiscoversGroups(t *testing.T) {
	set, err := ParseClinics(strings.NewReader(clinicsCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, set.Groups)
	require.Len(t, set.Clinics, 2)

	k1 := set.ByID["K1"]
	require.NotNil(t, k1)
	assert.Equal(t, "Uniklinik", k1.Name)
	assert.Equal(t, "Giessen", k1.City)
	assert.True(t, k1.IsGiessen)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, k1.Capacity)
	assert.Equal(t, 0, k1.Order)

	// Blank capacity fields count as zero.
	k2 := set.ByID["K2"]
	require.NotNil(t, k2)
	assert.False(t, k2.IsGiessen)
	assert.Equal(t, map[string]int{"A": 0, "B": 3}, k2.Capacity)
	assert.Equal(t, 1, k2.Order)
}

func TestParseClinics_ByteOrderMark(t *testing.T) {
	set, err := ParseClinics(strings.NewReader("\uFEFF" + clinicsCSV))
	require.NoError(t, err)
	assert.NotNil(t, set.ByID["K1"])
}

func TestParseClinics_MissingColumns(t *testing.T) {
	_, err := ParseClinics(strings.NewReader("klinik_id,cap_A\nK1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "klinik_name")
	assert.Contains(t, err.Error(), "stadt")
	assert.Contains(t, err.Error(), "ist_giessen")
}

func TestParseClinics_NoCapacityColumns(t *testing.T) {
	_, err := ParseClinics(strings.NewReader("klinik_id,klinik_name,stadt,ist_giessen\nK1,X,Y,ja\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity columns")
}

func TestParseClinics_RowErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			"empty id",
			"klinik_id,klinik_name,stadt,ist_giessen,cap_A\n,X,Y,ja,1\n",
			"empty klinik_id in row 2",
		},
		{
			"duplicate id",
			"klinik_id,klinik_name,stadt,ist_giessen,cap_A\nK1,X,Y,ja,1\nK1,X,Y,ja,1\n",
			`duplicate klinik_id "K1" in row 3`,
		},
		{
			"non-integer capacity",
			"klinik_id,klinik_name,stadt,ist_giessen,cap_A\nK1,X,Y,ja,two\n",
			"must be an integer",
		},
		{
			"negative capacity",
			"klinik_id,klinik_name,stadt,ist_giessen,cap_A\nK1,X,Y,ja,-1\n",
			"must not be negative",
		},
		{
			"no rows",
			"klinik_id,klinik_name,stadt,ist_giessen,cap_A\n",
			"contains no data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClinics(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseClinics_AllZeroCapacityIsValid(t *testing.T) {
	set, err := ParseClinics(strings.NewReader(
		"klinik_id,klinik_name,stadt,ist_giessen,cap_A\nK1,X,Y,ja,0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, set.ByID["K1"].Capacity["A"])
}

func studentHeader() string {
	return "matrikelnummer,name,email,gruppe_prio1,gruppe_prio2,klinik_prio1,klinik_prio2,klinik_prio3\n"
}

func testClinicSet(t *testing.T) *ClinicSet {
	t.Helper()
	set, err := ParseClinics(strings.NewReader(clinicsCSV))
	require.NoError(t, err)
	return set
}

func TestParseStudents_SortsNumerically(t *testing.T) {
	set := testClinicSet(t)
	csv := studentHeader() +
		"10,Zoe,zoe@example.com,A,,K1,,\n" +
		"2,Ada,ada@example.com,b,a,K2,K1,\n"
	students, err := ParseStudents(strings.NewReader(csv), set, false)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "2", students[0].MatNr)
	assert.Equal(t, "10", students[1].MatNr)

	// Group preferences are normalized to uppercase.
	assert.Equal(t, "B", students[0].GroupPrio1)
	assert.Equal(t, "A", students[0].GroupPrio2)
	assert.Equal(t, "", students[1].GroupPrio2)
}

func TestParseStudents_CollectsAllErrors(t *testing.T) {
	set := testClinicSet(t)
	csv := studentHeader() +
		"abc,Bad,bad@example.com,A,,K1,,\n" +
		"1,Ok,ok@example.com,X,,K1,,\n" +
		"2,Ref,ref@example.com,A,,K9,K8,\n" +
		"3,Dup,dup@example.com,A,,K1,,\n" +
		"3,Dup2,dup2@example.com,A,,K1,,\n"
	_, err := ParseStudents(strings.NewReader(csv), set, false)
	require.Error(t, err)

	rowErrs, ok := err.(*RowErrors)
	require.True(t, ok, "expected *RowErrors, got %T", err)
	require.Len(t, rowErrs.Lines, 5)
	assert.Contains(t, rowErrs.Lines[0], `row 2: invalid matrikelnummer "abc"`)
	assert.Contains(t, rowErrs.Lines[1], "row 3: gruppe_prio1")
	assert.Contains(t, rowErrs.Lines[2], `row 4: unknown klinik_id "K9"`)
	assert.Contains(t, rowErrs.Lines[3], `row 4: unknown klinik_id "K8"`)
	assert.Contains(t, rowErrs.Lines[4], `row 6: duplicate matrikelnummer "3"`)

	// Multi-line message lists each violation.
	assert.Equal(t, 6, len(strings.Split(err.Error(), "\n")))
}

func TestParseStudents_InvalidPrimaryGroup(t *testing.T) {
	set := testClinicSet(t)
	csv := studentHeader() + "1,Eva,eva@example.com,C,,K1,,\n"
	_, err := ParseStudents(strings.NewReader(csv), set, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "gruppe_prio1 must be one of A/B")
}

func TestParseStudents_RequireOutside(t *testing.T) {
	set := testClinicSet(t)
	// K1 is in Giessen, K2 is not.
	inside := studentHeader() + "1,Eva,eva@example.com,A,,K1,,\n"
	_, err := ParseStudents(strings.NewReader(inside), set, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside Giessen")

	outside := studentHeader() + "1,Eva,eva@example.com,A,,K1,K2,\n"
	students, err := ParseStudents(strings.NewReader(outside), set, true)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestParseStudents_EmptyOptionalFieldsAreValid(t *testing.T) {
	set := testClinicSet(t)
	csv := studentHeader() + "1,Eva,eva@example.com,A,,,,\n"
	students, err := ParseStudents(strings.NewReader(csv), set, false)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Empty(t, students[0].GroupPrio2)
	assert.Empty(t, students[0].ClinicPrio1)
}

func TestParseStudents_MissingColumns(t *testing.T) {
	set := testClinicSet(t)
	_, err := ParseStudents(strings.NewReader("matrikelnummer,name\n1,Eva\n"), set, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns")
	assert.Contains(t, err.Error(), "gruppe_prio1")
}

func TestParseStudents_Empty(t *testing.T) {
	set := testClinicSet(t)
	_, err := ParseStudents(strings.NewReader(studentHeader()), set, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no data")
}

func TestParseStudents_Idempotent(t *testing.T) {
	set := testClinicSet(t)
	csv := studentHeader() +
		"7,Eva,eva@example.com,A,B,K1,K2,\n" +
		"3,Tom,tom@example.com,B,,K2,,\n"
	first, err := ParseStudents(strings.NewReader(csv), set, false)
	require.NoError(t, err)
	second, err := ParseStudents(strings.NewReader(csv), set, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildClinicSet_DerivesGroups(t *testing.T) {
	set, err := BuildClinicSet([]models.Clinic{
		{ID: "K1", Name: "X", City: "Giessen", IsGiessen: true, Capacity: map[string]int{"b": 1, "a": 2}},
		{ID: "K2", Name: "Y", City: "Marburg", Capacity: map[string]int{"c": 1}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, set.Groups)
	assert.Equal(t, 2, set.ByID["K1"].Capacity["A"])
}

func TestBuildClinicSet_DuplicateID(t *testing.T) {
	_, err := BuildClinicSet([]models.Clinic{
		{ID: "K1", Capacity: map[string]int{"A": 1}},
		{ID: "K1", Capacity: map[string]int{"A": 1}},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate klinik_id")
}

func TestValidateStudents_JSONPath(t *testing.T) {
	set := testClinicSet(t)
	students, err := ValidateStudents([]models.Student{
		{MatNr: " 12 ", Name: "Eva", GroupPrio1: "a", ClinicPrio1: "K1"},
		{MatNr: "3", Name: "Tom", GroupPrio1: "B"},
	}, set, false)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "3", students[0].MatNr)
	assert.Equal(t, "A", students[1].GroupPrio1)

	_, err = ValidateStudents([]models.Student{
		{MatNr: "1", GroupPrio1: "A"},
		{MatNr: "1", GroupPrio1: "A"},
	}, set, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate matrikelnummer")
}

func TestLessNumeric(t *testing.T) {
	assert.True(t, lessNumeric("2", "10"))
	assert.False(t, lessNumeric("10", "2"))
	assert.True(t, lessNumeric("007", "8"))
	assert.False(t, lessNumeric("8", "007"))
	assert.False(t, lessNumeric("5", "5"))
}
