package events

import (
	"context"

	"eventtrack/internal/store"
)

// Reports computes read-only aggregates over current store contents. Every
// report is a single grouped statement; none of them mutate state.
type Reports struct {
	db *store.DB
}

// NewReports creates the reporting engine.
func NewReports(db *store.DB) *Reports {
	return &Reports{db: db}
}

// EventPopularity counts registrations per event, most popular first.
// Events with no registrations appear with a zero count. Ties break on
// event id ascending so output is deterministic.
func (r *Reports) EventPopularity(ctx context.Context, eventType string) ([]PopularityRow, error) {
	query := `
		SELECT e.id, e.title, e.event_type, e.start_time, e.end_time, COUNT(reg.id) AS registrations
		FROM events e
		LEFT JOIN registrations reg ON reg.event_id = e.id
	`
	args := []any{}
	if eventType != "" {
		query += ` WHERE e.event_type = ?`
		args = append(args, eventType)
	}
	query += `
		GROUP BY e.id
		ORDER BY COUNT(reg.id) DESC, e.id ASC
	`

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []PopularityRow{}
	for rows.Next() {
		var p PopularityRow
		if err := rows.Scan(&p.ID, &p.Title, &p.EventType, &p.StartTime, &p.EndTime, &p.Registrations); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// AttendancePercentage reports, per event, how many students registered and
// how many were marked present. The name is historical: it returns the raw
// counts, not a ratio.
func (r *Reports) AttendancePercentage(ctx context.Context) ([]AttendanceRow, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT e.id, e.title,
			(SELECT COUNT(*) FROM registrations reg WHERE reg.event_id = e.id) AS registered,
			(SELECT COUNT(*) FROM attendance a WHERE a.event_id = e.id AND a.present = 1) AS attended
		FROM events e
		ORDER BY e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []AttendanceRow{}
	for rows.Next() {
		var a AttendanceRow
		if err := rows.Scan(&a.EventID, &a.Title, &a.Registered, &a.Attended); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AverageFeedback returns the mean rating and feedback count per event.
// Events without feedback appear with avg_rating 0.
func (r *Reports) AverageFeedback(ctx context.Context) ([]RatingRow, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT e.id, e.title,
			COALESCE(AVG(f.rating), 0) AS avg_rating,
			COUNT(f.id) AS feedback_count
		FROM events e
		LEFT JOIN feedback f ON f.event_id = e.id
		GROUP BY e.id
		ORDER BY e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []RatingRow{}
	for rows.Next() {
		var rr RatingRow
		if err := rows.Scan(&rr.EventID, &rr.Title, &rr.AvgRating, &rr.FeedbackCount); err != nil {
			return nil, err
		}
		res = append(res, rr)
	}
	return res, rows.Err()
}

// TopStudents ranks students by the number of distinct events they were
// present at, attended count descending then id ascending. Registration and
// attendance counts both zero-fill through the left joins, so a student who
// registered but never attended still ranks.
func (r *Reports) TopStudents(ctx context.Context, limit int) ([]TopStudentRow, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT s.id, s.name,
			COUNT(DISTINCT reg.event_id) AS total_events,
			COUNT(DISTINCT a.event_id) AS attended_events
		FROM students s
		LEFT JOIN registrations reg ON reg.student_id = s.id
		LEFT JOIN attendance a ON a.student_id = s.id AND a.present = 1
		GROUP BY s.id
		ORDER BY COUNT(DISTINCT a.event_id) DESC, s.id ASC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []TopStudentRow{}
	for rows.Next() {
		var t TopStudentRow
		if err := rows.Scan(&t.ID, &t.Name, &t.TotalEvents, &t.AttendedEvents); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
