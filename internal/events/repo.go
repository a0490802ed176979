package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventtrack/internal/store"
)

// Repository persists the five entities and enforces their write-time
// invariants. Uniqueness lives in the schema (unique indexes on student
// email and on every (event_id, student_id) pair); the checks here exist to
// return the friendlier typed errors, with the constraint as backstop for
// concurrent writers.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo over an opened store.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts an event and returns its id. Validation happens in
// the service; by the time it reaches here the row is well formed.
func (r *Repository) CreateEvent(ctx context.Context, e Event) (int64, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO events (title, event_type, start_time, end_time)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), e.Title, e.EventType, e.StartTime, e.EndTime)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// GetEvent returns an event with its registration list, or nil when absent.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*EventDetail, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, title, event_type, start_time, end_time FROM events WHERE id = ?
	`), id)
	var d EventDetail
	if err := row.Scan(&d.ID, &d.Title, &d.EventType, &d.StartTime, &d.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	students, err := r.ListEventStudents(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Registrations = make([]EventRegistration, 0, len(students))
	for _, rs := range students {
		d.Registrations = append(d.Registrations, EventRegistration{
			RegistrationID: rs.RegistrationID,
			StudentID:      rs.StudentID,
			Student:        rs.Name,
			Email:          rs.Email,
		})
	}
	return &d, nil
}

// EventExists reports whether an event row exists.
func (r *Repository) EventExists(ctx context.Context, id int64) (bool, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM events WHERE id = ?`), id)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListEvents returns every event with its registration count. The left join
// keeps zero-registration events in the result.
func (r *Repository) ListEvents(ctx context.Context) ([]EventSummary, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT e.id, e.title, e.event_type, e.start_time, e.end_time, COUNT(reg.id)
		FROM events e
		LEFT JOIN registrations reg ON reg.event_id = e.id
		GROUP BY e.id
		ORDER BY e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []EventSummary{}
	for rows.Next() {
		var s EventSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.EventType, &s.StartTime, &s.EndTime, &s.Registrations); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListEventStudents returns the students registered for an event. The
// caller decides whether a missing event is an error.
func (r *Repository) ListEventStudents(ctx context.Context, eventID int64) ([]RegisteredStudent, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT reg.id, s.id, s.name, s.email
		FROM registrations reg
		JOIN students s ON s.id = reg.student_id
		WHERE reg.event_id = ?
		ORDER BY reg.id
	`), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []RegisteredStudent{}
	for rows.Next() {
		var rs RegisteredStudent
		if err := rows.Scan(&rs.RegistrationID, &rs.StudentID, &rs.Name, &rs.Email); err != nil {
			return nil, err
		}
		res = append(res, rs)
	}
	return res, rows.Err()
}

// GetStudent returns a student by id, or nil when absent.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	return r.scanStudent(r.db.Client.QueryRowContext(ctx,
		r.db.Rebind(`SELECT id, name, email FROM students WHERE id = ?`), id))
}

// GetStudentByEmail returns a student by email, or nil when absent.
func (r *Repository) GetStudentByEmail(ctx context.Context, email string) (*Student, error) {
	return r.scanStudent(r.db.Client.QueryRowContext(ctx,
		r.db.Rebind(`SELECT id, name, email FROM students WHERE email = ?`), email))
}

func (r *Repository) scanStudent(row *sql.Row) (*Student, error) {
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListStudents returns all students ordered by id.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT id, name, email FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Student{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListStudentEvents returns the events a student registered for.
func (r *Repository) ListStudentEvents(ctx context.Context, studentID int64) ([]StudentEvent, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT e.id, e.title, e.event_type, e.start_time, e.end_time, reg.id
		FROM registrations reg
		JOIN events e ON e.id = reg.event_id
		WHERE reg.student_id = ?
		ORDER BY reg.id
	`), studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []StudentEvent{}
	for rows.Next() {
		var se StudentEvent
		if err := rows.Scan(&se.EventID, &se.Title, &se.EventType, &se.StartTime, &se.EndTime, &se.RegistrationID); err != nil {
			return nil, err
		}
		res = append(res, se)
	}
	return res, rows.Err()
}

// CreateOrGetStudent resolves a student by email, inserting when absent.
// The returned bool is true when a new row was created. An existing student
// is returned unchanged; the name is deliberately not updated.
func (r *Repository) CreateOrGetStudent(ctx context.Context, name, email string) (Student, bool, error) {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return Student{}, false, err
	}
	defer tx.Rollback()

	st, created, err := r.upsertStudent(ctx, tx, name, email)
	if err != nil {
		return Student{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Student{}, false, err
	}
	return st, created, nil
}

func (r *Repository) upsertStudent(ctx context.Context, tx *sql.Tx, name, email string) (Student, bool, error) {
	var s Student
	err := tx.QueryRowContext(ctx,
		r.db.Rebind(`SELECT id, name, email FROM students WHERE email = ?`), email).
		Scan(&s.ID, &s.Name, &s.Email)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Student{}, false, err
	}

	err = tx.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO students (name, email)
		VALUES (?, ?)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`), name, email).Scan(&s.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// A concurrent insert won; read its row.
		err = tx.QueryRowContext(ctx,
			r.db.Rebind(`SELECT id, name, email FROM students WHERE email = ?`), email).
			Scan(&s.ID, &s.Name, &s.Email)
		if err != nil {
			return Student{}, false, err
		}
		return s, false, nil
	}
	if err != nil {
		return Student{}, false, err
	}
	s.Name, s.Email = name, email
	return s, true, nil
}

func (r *Repository) registrationID(ctx context.Context, tx *sql.Tx, eventID, studentID int64) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id FROM registrations WHERE event_id = ? AND student_id = ?`), eventID, studentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Register resolves or creates the student and registers them for the
// event, all in one transaction. A duplicate pair returns the existing
// registration id with already=true rather than an error.
func (r *Repository) Register(ctx context.Context, eventID int64, name, email string) (int64, bool, error) {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM events WHERE id = ?`), eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, &NotFoundError{Msg: "event not found"}
	}
	if err != nil {
		return 0, false, err
	}

	st, _, err := r.upsertStudent(ctx, tx, name, email)
	if err != nil {
		return 0, false, err
	}

	if id, ok, err := r.registrationID(ctx, tx, eventID, st.ID); err != nil {
		return 0, false, err
	} else if ok {
		if err := tx.Commit(); err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	var regID int64
	err = tx.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO registrations (event_id, student_id, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id, student_id) DO NOTHING
		RETURNING id
	`), eventID, st.ID, time.Now().UTC()).Scan(&regID)
	already := false
	if errors.Is(err, sql.ErrNoRows) {
		// Concurrent register for the same pair won the insert.
		regID, _, err = r.registrationID(ctx, tx, eventID, st.ID)
		already = true
	}
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return regID, already, nil
}

// MarkAttendance upserts the attendance row for a registered student.
// Re-marking keeps the single row, sets present and refreshes
// checked_in_at.
func (r *Repository) MarkAttendance(ctx context.Context, eventID int64, email string) error {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var st Student
	err = tx.QueryRowContext(ctx,
		r.db.Rebind(`SELECT id, name, email FROM students WHERE email = ?`), email).
		Scan(&st.ID, &st.Name, &st.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Msg: "student not found"}
	}
	if err != nil {
		return err
	}

	if _, ok, err := r.registrationID(ctx, tx, eventID, st.ID); err != nil {
		return err
	} else if !ok {
		return &PreconditionError{Msg: "student not registered for this event"}
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (event_id, student_id, present, checked_in_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (event_id, student_id) DO UPDATE SET
			present = 1,
			checked_in_at = excluded.checked_in_at
	`), eventID, st.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SubmitFeedback stores one feedback row per (event, student). A second
// submission is rejected with ConflictError, never merged.
func (r *Repository) SubmitFeedback(ctx context.Context, eventID, studentID int64, rating int, comments *string) error {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, ok, err := r.registrationID(ctx, tx, eventID, studentID); err != nil {
		return err
	} else if !ok {
		return &PreconditionError{Msg: "student not registered for this event"}
	}

	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feedback (event_id, student_id, rating, comments, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, student_id) DO NOTHING
	`), eventID, studentID, rating, comments, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ConflictError{Msg: "feedback already submitted"}
	}
	return tx.Commit()
}

// DeleteStudent removes a student; registrations, attendance and feedback
// rows follow via the FK cascade rules.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`DELETE FROM students WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Msg: "student not found"}
	}
	return nil
}

// DeleteAllEvents clears the events table, cascading to registrations,
// attendance and feedback. Returns the number of events removed.
func (r *Repository) DeleteAllEvents(ctx context.Context) (int64, error) {
	return r.deleteAll(ctx, "events")
}

// DeleteAllRegistrations clears the registrations table.
func (r *Repository) DeleteAllRegistrations(ctx context.Context) (int64, error) {
	return r.deleteAll(ctx, "registrations")
}

// DeleteAllAttendance clears the attendance table.
func (r *Repository) DeleteAllAttendance(ctx context.Context) (int64, error) {
	return r.deleteAll(ctx, "attendance")
}

// DeleteAllFeedback clears the feedback table.
func (r *Repository) DeleteAllFeedback(ctx context.Context) (int64, error) {
	return r.deleteAll(ctx, "feedback")
}

func (r *Repository) deleteAll(ctx context.Context, table string) (int64, error) {
	res, err := r.db.Client.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
