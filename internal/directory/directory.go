package directory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// ErrStudentNotFound is returned by Lookup when no student has the given id.
// Callers recover it into a user-facing message; it is never fatal.
var ErrStudentNotFound = errors.New("student not found")

// Student is one roster entry. Immutable after load.
type Student struct {
	ID         string `json:"id"`
	LastName   string `json:"lastName"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	Email      string `json:"email"`
	GradYear   string `json:"gradYear"`
	CommonName string `json:"commonName"`
	FullName   string `json:"fullName"`
}

// Roster CSV header names. Kept as named constants so a re-export with
// renamed headers is a one-line change.
const (
	colID         = "Student ID"
	colLastName   = "Last Name"
	colFirstName  = "First Name"
	colMiddleName = "Middle Name"
	colEmail      = "ElderEmail"
	colGradYear   = "Grad Year"
)

// Directory is the in-memory student roster, keyed by student id. Loaded once
// at startup and read-only afterwards, so it is safe for concurrent use.
type Directory struct {
	students map[string]Student
}

// Load reads the roster CSV at path into a Directory. Rows missing a required
// field are logged and skipped; the middle name may be empty. Load fails only
// when the file itself cannot be opened or parsed.
func Load(path string, logger *slog.Logger) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer f.Close()

	d, err := parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	logger.Info("roster loaded", "students", len(d.students))
	return d, nil
}

func parse(r io.Reader, logger *slog.Logger) (*Directory, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colID, colLastName, colFirstName, colMiddleName, colEmail, colGradYear} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("roster missing column %q", required)
		}
	}

	students := make(map[string]Student)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(col string) string { return strings.TrimSpace(record[idx[col]]) }

		s := Student{
			ID:         field(colID),
			LastName:   field(colLastName),
			FirstName:  field(colFirstName),
			MiddleName: field(colMiddleName),
			Email:      field(colEmail),
			GradYear:   field(colGradYear),
		}
		// middle name may legitimately be empty; everything else is required
		if s.ID == "" || s.LastName == "" || s.FirstName == "" || s.Email == "" || s.GradYear == "" {
			logger.Warn("skipping roster row with missing fields", "row", record)
			continue
		}
		s.CommonName = s.FirstName + " " + s.LastName
		s.FullName = fullName(s.FirstName, s.MiddleName, s.LastName)
		students[s.ID] = s
	}
	return &Directory{students: students}, nil
}

func fullName(first, middle, last string) string {
	if middle == "" {
		return first + " " + last
	}
	return first + " " + middle + " " + last
}

// Lookup returns the student with the given id or ErrStudentNotFound.
func (d *Directory) Lookup(id string) (Student, error) {
	s, ok := d.students[id]
	if !ok {
		return Student{}, fmt.Errorf("%w: %q", ErrStudentNotFound, id)
	}
	return s, nil
}

// Search returns students whose common or full name contains query,
// case-insensitively, sorted by last name ascending.
func (d *Directory) Search(query string) []Student {
	target := strings.ToLower(query)
	var matches []Student
	for _, s := range d.students {
		if strings.Contains(strings.ToLower(s.CommonName), target) ||
			strings.Contains(strings.ToLower(s.FullName), target) {
			matches = append(matches, s)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LastName != matches[j].LastName {
			return matches[i].LastName < matches[j].LastName
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// Len reports the number of loaded students.
func (d *Directory) Len() int { return len(d.students) }
