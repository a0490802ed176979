package events

import (
	"context"
	"testing"
)

// seedActivity creates two events and three students: everyone registers
// for "Popular", Ana and Ben attend it, Ana leaves feedback; "Empty" has no
// activity at all.
func seedActivity(t *testing.T, repo *Repository) (popular, empty int64) {
	t.Helper()
	ctx := context.Background()

	popular = mustCreateEvent(t, repo, "Popular")
	empty = mustCreateEvent(t, repo, "Empty")

	for _, s := range []struct{ name, email string }{
		{"Ana", "ana@x.com"},
		{"Ben", "ben@x.com"},
		{"Cai", "cai@x.com"},
	} {
		if _, _, err := repo.Register(ctx, popular, s.name, s.email); err != nil {
			t.Fatalf("register %s: %v", s.email, err)
		}
	}
	for _, email := range []string{"ana@x.com", "ben@x.com"} {
		if err := repo.MarkAttendance(ctx, popular, email); err != nil {
			t.Fatalf("attendance %s: %v", email, err)
		}
	}
	ana, _ := repo.GetStudentByEmail(ctx, "ana@x.com")
	if err := repo.SubmitFeedback(ctx, popular, ana.ID, 4, nil); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	return popular, empty
}

func TestEventPopularityZeroFillAndOrder(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	popular, empty := seedActivity(t, repo)

	rows, err := reports.EventPopularity(context.Background(), "")
	if err != nil {
		t.Fatalf("event popularity: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != popular || rows[0].Registrations != 3 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].ID != empty || rows[1].Registrations != 0 {
		t.Fatalf("zero-registration event missing or nonzero: %+v", rows[1])
	}
}

func TestEventPopularityTieBreaksOnID(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)

	a := mustCreateEvent(t, repo, "A")
	b := mustCreateEvent(t, repo, "B")

	rows, err := reports.EventPopularity(context.Background(), "")
	if err != nil {
		t.Fatalf("event popularity: %v", err)
	}
	if rows[0].ID != a || rows[1].ID != b {
		t.Fatalf("tie should order by id ascending: %+v", rows)
	}
}

func TestEventPopularityTypeFilter(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	ctx := context.Background()

	if _, err := repo.CreateEvent(ctx, Event{Title: "Talk", EventType: "Seminar"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	mustCreateEvent(t, repo, "Hands-on")

	rows, err := reports.EventPopularity(ctx, "Seminar")
	if err != nil {
		t.Fatalf("event popularity: %v", err)
	}
	if len(rows) != 1 || rows[0].EventType != "Seminar" {
		t.Fatalf("type filter failed: %+v", rows)
	}
}

func TestAttendancePercentageCounts(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	popular, empty := seedActivity(t, repo)

	rows, err := reports.AttendancePercentage(context.Background())
	if err != nil {
		t.Fatalf("attendance percentage: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	byID := map[int64]AttendanceRow{}
	for _, r := range rows {
		byID[r.EventID] = r
	}
	if r := byID[popular]; r.Registered != 3 || r.Attended != 2 {
		t.Fatalf("unexpected counts for popular event: %+v", r)
	}
	if r := byID[empty]; r.Registered != 0 || r.Attended != 0 {
		t.Fatalf("event with no activity must report 0/0: %+v", r)
	}
}

func TestAverageFeedback(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	ctx := context.Background()
	popular, empty := seedActivity(t, repo)

	ben, _ := repo.GetStudentByEmail(ctx, "ben@x.com")
	if err := repo.SubmitFeedback(ctx, popular, ben.ID, 5, nil); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	rows, err := reports.AverageFeedback(ctx)
	if err != nil {
		t.Fatalf("average feedback: %v", err)
	}
	byID := map[int64]RatingRow{}
	for _, r := range rows {
		byID[r.EventID] = r
	}
	if r := byID[popular]; r.AvgRating != 4.5 || r.FeedbackCount != 2 {
		t.Fatalf("expected avg 4.5 over 2 ratings, got %+v", r)
	}
	if r := byID[empty]; r.AvgRating != 0 || r.FeedbackCount != 0 {
		t.Fatalf("no-feedback event must report 0 avg and count: %+v", r)
	}
}

func TestTopStudents(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	ctx := context.Background()
	seedActivity(t, repo)

	rows, err := reports.TopStudents(ctx, 3)
	if err != nil {
		t.Fatalf("top students: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// Ana and Ben attended (tie broken by id: Ana first), Cai registered only.
	if rows[0].Name != "Ana" || rows[0].AttendedEvents != 1 || rows[0].TotalEvents != 1 {
		t.Fatalf("unexpected top row: %+v", rows[0])
	}
	if rows[1].Name != "Ben" || rows[1].AttendedEvents != 1 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[2].Name != "Cai" || rows[2].AttendedEvents != 0 || rows[2].TotalEvents != 1 {
		t.Fatalf("registered-only student should still rank: %+v", rows[2])
	}
}

func TestTopStudentsLimit(t *testing.T) {
	repo, db := testRepo(t)
	reports := NewReports(db)
	seedActivity(t, repo)

	rows, err := reports.TopStudents(context.Background(), 1)
	if err != nil {
		t.Fatalf("top students: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("limit 1 should return 1 row, got %d", len(rows))
	}

	// Non-positive limit falls back to the default of 3.
	rows, err = reports.TopStudents(context.Background(), 0)
	if err != nil {
		t.Fatalf("top students: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("default limit should return 3 rows, got %d", len(rows))
	}
}
