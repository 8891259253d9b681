package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/klipps/zuteilung-api-go/pkg/allocator"
	"github.com/klipps/zuteilung-api-go/pkg/models"
	"github.com/klipps/zuteilung-api-go/pkg/roster"
)

var opts struct {
	Clinics        string `long:"kliniken" default:"kliniken.csv" description:"clinic table (CSV)"`
	Students       string `long:"studierende" default:"studierende.csv" description:"student table (CSV)"`
	Out            string `long:"out" default:"zuteilung.csv" description:"output table (CSV)"`
	RequireOutside bool   `long:"require-outside" description:"require at least one clinic preference outside Giessen"`
}

func main() {
	_ = godotenv.Load(".env")

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	set, err := readClinics(opts.Clinics)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	students, err := readStudents(opts.Students, set, opts.RequireOutside)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	assigned, stats, err := allocator.Assign(students, set.Clinics, set.Groups)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	rows := allocator.Project(students, assigned, set.ByID)

	if err := writeResult(opts.Out, rows); err != nil {
		logrus.Fatalf("writing %s: %v", opts.Out, err)
	}

	fmt.Printf("Done. Result written to %s\n", opts.Out)
	fmt.Printf("Detected groups: %s\n", strings.Join(set.Groups, ", "))
	fmt.Printf("Students: %d\n", len(students))
	fmt.Printf("Group preference 1 hits: %d\n", stats.GroupPrio1)
	fmt.Printf("Group preference 2 hits: %d\n", stats.GroupPrio2)
	fmt.Printf("Clinic preference 1 hits: %d\n", stats.ClinicPrio1)
	fmt.Printf("Clinic preference 2 hits: %d\n", stats.ClinicPrio2)
	fmt.Printf("Clinic preference 3 hits: %d\n", stats.ClinicPrio3)
}

func readClinics(path string) (*roster.ClinicSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()
	return roster.ParseClinics(f)
}

func readStudents(path string, set *roster.ClinicSet, requireOutside bool) ([]*models.Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()
	return roster.ParseStudents(f, set, requireOutside)
}

func writeResult(path string, rows []models.ResultRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := allocator.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
