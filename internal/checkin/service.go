package checkin

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"elderpass/internal/directory"
)

// Teacher identifies the acting teacher, taken from the session token.
type Teacher struct {
	Name  string
	Email string
}

// Enqueuer is the submission-queue surface the service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, evt Event) error
}

// Service coordinates check-in/out submissions. A request is acknowledged as
// soon as its event is queued; durability is asynchronous and eventual.
type Service struct {
	dir    *directory.Directory
	queue  Enqueuer
	logger *slog.Logger
}

// NewService creates a service over the roster directory and submission queue.
func NewService(dir *directory.Directory, q Enqueuer, logger *slog.Logger) *Service {
	return &Service{dir: dir, queue: q, logger: logger}
}

// Record resolves the student, builds the check event, and enqueues it for
// the flush scheduler. The student id and direction are validated by the
// request layer before they reach here; an unknown student surfaces as
// directory.ErrStudentNotFound.
func (s *Service) Record(ctx context.Context, studentID string, dir Direction, at time.Time, teacher Teacher) (directory.Student, error) {
	student, err := s.dir.Lookup(studentID)
	if err != nil {
		return directory.Student{}, err
	}

	evt := Event{
		EntryID:      uuid.NewString(),
		StudentID:    student.ID,
		LastName:     student.LastName,
		FirstName:    student.FirstName,
		MiddleName:   student.MiddleName,
		TeacherName:  teacher.Name,
		Direction:    dir,
		Time:         at,
		StudentEmail: student.Email,
		TeacherEmail: teacher.Email,
	}
	if err := s.queue.Enqueue(ctx, evt); err != nil {
		return directory.Student{}, err
	}
	s.logger.Info("check event queued",
		"entry_id", evt.EntryID, "student_id", evt.StudentID, "direction", evt.Direction)
	return student, nil
}
