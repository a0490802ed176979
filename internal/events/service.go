package events

import (
	"context"
	"strings"
	"time"
)

// DefaultEventType is applied when event creation omits a type.
const DefaultEventType = "Workshop"

// Accepted timestamp layouts for event start/end, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Service validates input and coordinates repository calls. It holds no
// state beyond the injected repository.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateEvent validates and inserts an event, returning the new id.
// Timestamps are optional ISO-8601 strings, with or without a zone offset.
func (s *Service) CreateEvent(ctx context.Context, title, eventType, start, end string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, &ValidationError{Msg: "title is required"}
	}
	if eventType == "" {
		eventType = DefaultEventType
	}
	startAt, err := parseEventTime(start)
	if err != nil {
		return 0, err
	}
	endAt, err := parseEventTime(end)
	if err != nil {
		return 0, err
	}
	return s.repo.CreateEvent(ctx, Event{
		Title:     title,
		EventType: eventType,
		StartTime: startAt,
		EndTime:   endAt,
	})
}

func parseEventTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, &ValidationError{Msg: "invalid date format - use ISO format"}
}

// CreateOrGetStudent is an idempotent upsert-by-email: an existing student
// is returned unchanged, created=false.
func (s *Service) CreateOrGetStudent(ctx context.Context, name, email string) (Student, bool, error) {
	if name == "" || email == "" {
		return Student{}, false, &ValidationError{Msg: "name and email required"}
	}
	return s.repo.CreateOrGetStudent(ctx, name, email)
}

// Register registers a (possibly new) student for an event. already=true
// means the pair was registered before and the existing id is returned.
func (s *Service) Register(ctx context.Context, eventID int64, name, email string) (int64, bool, error) {
	if name == "" || email == "" {
		return 0, false, &ValidationError{Msg: "name and email are required"}
	}
	return s.repo.Register(ctx, eventID, name, email)
}

// MarkAttendance marks a registered student present for an event.
func (s *Service) MarkAttendance(ctx context.Context, eventID int64, email string) error {
	if email == "" {
		return &ValidationError{Msg: "email is required"}
	}
	return s.repo.MarkAttendance(ctx, eventID, email)
}

// SubmitFeedback accepts either a student id or an email, validates the
// rating and stores at most one feedback row per (event, student).
func (s *Service) SubmitFeedback(ctx context.Context, eventID, studentID int64, email string, rating int, comments string) error {
	if studentID == 0 && email == "" {
		return &ValidationError{Msg: "student_id or email is required"}
	}
	if rating < 1 || rating > 5 {
		return &ValidationError{Msg: "rating must be 1-5"}
	}

	var st *Student
	var err error
	if studentID != 0 {
		st, err = s.repo.GetStudent(ctx, studentID)
	} else {
		st, err = s.repo.GetStudentByEmail(ctx, email)
	}
	if err != nil {
		return err
	}
	if st == nil {
		return &NotFoundError{Msg: "student not found"}
	}

	var c *string
	if comments != "" {
		c = &comments
	}
	return s.repo.SubmitFeedback(ctx, eventID, st.ID, rating, c)
}
