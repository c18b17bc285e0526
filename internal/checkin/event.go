package checkin

import (
	"fmt"
	"time"
)

// Direction says whether a student is entering or leaving the study period.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ParseDirection validates a raw direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionIn, DirectionOut:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q (want IN or OUT)", s)
}

// Columns is the durable row schema. Column order is a persistence contract
// shared with every partition ever written; it must never change.
var Columns = []string{
	"id", "lastName", "firstName", "middleName", "teacherName",
	"checkIn", "time", "studentEmail", "teacherEmail",
}

// Event is one teacher-initiated IN/OUT action for a student. Immutable after
// creation; ownership moves from the request path into the submission queue
// and then into durable storage.
type Event struct {
	EntryID      string    `json:"entryId"`
	StudentID    string    `json:"studentId"`
	LastName     string    `json:"lastName"`
	FirstName    string    `json:"firstName"`
	MiddleName   string    `json:"middleName"`
	TeacherName  string    `json:"teacherName"`
	Direction    Direction `json:"direction"`
	Time         time.Time `json:"time"`
	StudentEmail string    `json:"studentEmail"`
	TeacherEmail string    `json:"teacherEmail"`
}

// TimeKey is the normalized timestamp representation used for chronological
// ordering. RFC3339 in UTC compares lexicographically in time order, which
// keeps analysis sorting deterministic.
func (e Event) TimeKey() string {
	return e.Time.UTC().Format(time.RFC3339)
}

// Row encodes the event in the durable column order.
func (e Event) Row() []string {
	return []string{
		e.StudentID, e.LastName, e.FirstName, e.MiddleName, e.TeacherName,
		string(e.Direction), e.TimeKey(), e.StudentEmail, e.TeacherEmail,
	}
}

// EventFromRow decodes a durable row back into an Event. The EntryID is not
// persisted; decoded events have none.
func EventFromRow(row []string) (Event, error) {
	if len(row) != len(Columns) {
		return Event{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Columns))
	}
	dir, err := ParseDirection(row[5])
	if err != nil {
		return Event{}, err
	}
	t, err := time.Parse(time.RFC3339, row[6])
	if err != nil {
		return Event{}, fmt.Errorf("parse event time %q: %w", row[6], err)
	}
	return Event{
		StudentID:    row[0],
		LastName:     row[1],
		FirstName:    row[2],
		MiddleName:   row[3],
		TeacherName:  row[4],
		Direction:    dir,
		Time:         t,
		StudentEmail: row[7],
		TeacherEmail: row[8],
	}, nil
}
