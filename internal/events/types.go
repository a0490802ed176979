package events

import "time"

// Event is a scheduled activity students can register for.
type Event struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	EventType string     `json:"event_type"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// Student is identified by a globally unique email.
type Student struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Registration records a student's intent to attend an event. It is the
// prerequisite for attendance and feedback on that event.
type Registration struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	StudentID    int64     `json:"student_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Attendance records whether a registered student showed up. Present is an
// integer flag, 1 = present.
type Attendance struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	StudentID   int64     `json:"student_id"`
	Present     int       `json:"present"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// Feedback is a registered student's post-event rating and optional comment.
type Feedback struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	StudentID int64     `json:"student_id"`
	Rating    int       `json:"rating"`
	Comments  *string   `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// EventSummary is an event plus how many registrations it holds.
type EventSummary struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	EventType     string     `json:"event_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Registrations int        `json:"registrations"`
}

// RegisteredStudent is a registration joined with its student, as listed
// by the event-students endpoint.
type RegisteredStudent struct {
	RegistrationID int64  `json:"registration_id"`
	StudentID      int64  `json:"student_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
}

// EventRegistration is the registration row embedded in the get-event
// response, where the student's name is keyed "student".
type EventRegistration struct {
	RegistrationID int64  `json:"registration_id"`
	StudentID      int64  `json:"student_id"`
	Student        string `json:"student"`
	Email          string `json:"email"`
}

// EventDetail is an event with its full registration list.
type EventDetail struct {
	Event
	Registrations []EventRegistration `json:"registrations"`
}

// StudentEvent is an event a student registered for, seen from the
// student's side.
type StudentEvent struct {
	EventID        int64      `json:"event_id"`
	Title          string     `json:"title"`
	EventType      string     `json:"event_type"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	RegistrationID int64      `json:"registration_id"`
}

// PopularityRow is one event in the popularity report, ordered by
// registration count descending (id ascending on ties).
type PopularityRow struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	EventType     string     `json:"event_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Registrations int        `json:"registrations"`
}

// AttendanceRow carries raw per-event counts. No ratio is computed; callers
// divide attended by registered if they want a percentage.
type AttendanceRow struct {
	EventID    int64  `json:"event_id"`
	Title      string `json:"title"`
	Registered int    `json:"registered"`
	Attended   int    `json:"attended"`
}

// RatingRow is one event in the average-feedback report.
type RatingRow struct {
	EventID       int64   `json:"event_id"`
	Title         string  `json:"title"`
	AvgRating     float64 `json:"avg_rating"`
	FeedbackCount int     `json:"feedback_count"`
}

// TopStudentRow counts the distinct events a student registered for and the
// distinct events they were present at.
type TopStudentRow struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	TotalEvents    int    `json:"total_events"`
	AttendedEvents int    `json:"attended_events"`
}
