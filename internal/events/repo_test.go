package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"eventtrack/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	// A named shared-cache memory DB so the pool sees one database.
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := store.Open(store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRepo(t *testing.T) (*Repository, *store.DB) {
	t.Helper()
	db := testDB(t)
	return NewRepository(db), db
}

func rowCount(t *testing.T, db *store.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Client.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func mustCreateEvent(t *testing.T, repo *Repository, title string) int64 {
	t.Helper()
	id, err := repo.CreateEvent(context.Background(), Event{Title: title, EventType: DefaultEventType})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return id
}

func TestCreateEventFirstIDIsOne(t *testing.T) {
	repo, _ := testRepo(t)
	id := mustCreateEvent(t, repo, "Intro to Go")
	if id != 1 {
		t.Fatalf("expected first event id 1, got %d", id)
	}
}

func TestCreateEventRoundTrip(t *testing.T) {
	repo, _ := testRepo(t)
	id := mustCreateEvent(t, repo, "Intro to Go")

	detail, err := repo.GetEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if detail == nil {
		t.Fatalf("expected event %d to exist", id)
	}
	if detail.Title != "Intro to Go" || detail.EventType != "Workshop" {
		t.Fatalf("unexpected event: %+v", detail)
	}
	if detail.StartTime != nil || detail.EndTime != nil {
		t.Fatalf("expected nil timestamps, got %v / %v", detail.StartTime, detail.EndTime)
	}
	if len(detail.Registrations) != 0 {
		t.Fatalf("expected no registrations, got %d", len(detail.Registrations))
	}
}

func TestGetEventMissing(t *testing.T) {
	repo, _ := testRepo(t)
	detail, err := repo.GetEvent(context.Background(), 42)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if detail != nil {
		t.Fatalf("expected nil for missing event, got %+v", detail)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	repo, db := testRepo(t)
	eventID := mustCreateEvent(t, repo, "Intro to Go")

	first, already, err := repo.Register(context.Background(), eventID, "Ana", "ana@x.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if already {
		t.Fatalf("first register reported already=true")
	}

	second, already, err := repo.Register(context.Background(), eventID, "Ana", "ana@x.com")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if !already {
		t.Fatalf("second register should report already=true")
	}
	if first != second {
		t.Fatalf("registration ids differ: %d vs %d", first, second)
	}
	if n := rowCount(t, db, "registrations"); n != 1 {
		t.Fatalf("expected 1 registration row, got %d", n)
	}
}

func TestRegisterUnknownEvent(t *testing.T) {
	repo, _ := testRepo(t)
	_, _, err := repo.Register(context.Background(), 99, "Ana", "ana@x.com")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRegisterReusesStudentByEmail(t *testing.T) {
	repo, db := testRepo(t)
	e1 := mustCreateEvent(t, repo, "Workshop A")
	e2 := mustCreateEvent(t, repo, "Workshop B")

	if _, _, err := repo.Register(context.Background(), e1, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register e1: %v", err)
	}
	// Same email, different name: the stored student must stay unchanged.
	if _, _, err := repo.Register(context.Background(), e2, "Someone Else", "ana@x.com"); err != nil {
		t.Fatalf("register e2: %v", err)
	}

	if n := rowCount(t, db, "students"); n != 1 {
		t.Fatalf("expected 1 student, got %d", n)
	}
	st, err := repo.GetStudentByEmail(context.Background(), "ana@x.com")
	if err != nil || st == nil {
		t.Fatalf("get student: %v %v", st, err)
	}
	if st.Name != "Ana" {
		t.Fatalf("student name was rewritten to %q", st.Name)
	}
}

func TestMarkAttendance(t *testing.T) {
	repo, db := testRepo(t)
	eventID := mustCreateEvent(t, repo, "Intro to Go")
	ctx := context.Background()

	err := repo.MarkAttendance(ctx, eventID, "ghost@x.com")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown student, got %v", err)
	}

	if _, _, err := repo.CreateOrGetStudent(ctx, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("create student: %v", err)
	}
	err = repo.MarkAttendance(ctx, eventID, "ana@x.com")
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError before registration, got %v", err)
	}

	if _, _, err := repo.Register(ctx, eventID, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.MarkAttendance(ctx, eventID, "ana@x.com"); err != nil {
		t.Fatalf("mark attendance: %v", err)
	}
	// Idempotent: re-marking keeps a single present row.
	if err := repo.MarkAttendance(ctx, eventID, "ana@x.com"); err != nil {
		t.Fatalf("re-mark attendance: %v", err)
	}
	if n := rowCount(t, db, "attendance"); n != 1 {
		t.Fatalf("expected 1 attendance row, got %d", n)
	}
	var present int
	if err := db.Client.QueryRow("SELECT present FROM attendance").Scan(&present); err != nil {
		t.Fatalf("read present: %v", err)
	}
	if present != 1 {
		t.Fatalf("expected present=1, got %d", present)
	}
}

func TestSubmitFeedback(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	eventID := mustCreateEvent(t, repo, "Intro to Go")

	st, _, err := repo.CreateOrGetStudent(ctx, "Ana", "ana@x.com")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	err = repo.SubmitFeedback(ctx, eventID, st.ID, 4, nil)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError before registration, got %v", err)
	}

	if _, _, err := repo.Register(ctx, eventID, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	comment := "great session"
	if err := repo.SubmitFeedback(ctx, eventID, st.ID, 4, &comment); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}

	err = repo.SubmitFeedback(ctx, eventID, st.ID, 5, nil)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError on duplicate feedback, got %v", err)
	}
}

func TestDeleteStudent(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	err := repo.DeleteStudent(ctx, 7)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	eventID := mustCreateEvent(t, repo, "Intro to Go")
	if _, _, err := repo.Register(ctx, eventID, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.MarkAttendance(ctx, eventID, "ana@x.com"); err != nil {
		t.Fatalf("attendance: %v", err)
	}
	st, _ := repo.GetStudentByEmail(ctx, "ana@x.com")
	if err := repo.SubmitFeedback(ctx, eventID, st.ID, 5, nil); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	if err := repo.DeleteStudent(ctx, st.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	for _, table := range []string{"registrations", "attendance", "feedback"} {
		if n := rowCount(t, db, table); n != 0 {
			t.Fatalf("expected %s cascade to empty, got %d rows", table, n)
		}
	}
	if n := rowCount(t, db, "events"); n != 1 {
		t.Fatalf("event should survive student delete, got %d rows", n)
	}
}

func TestDeleteAllEventsCascades(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	eventID := mustCreateEvent(t, repo, "Intro to Go")
	if _, _, err := repo.Register(ctx, eventID, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.MarkAttendance(ctx, eventID, "ana@x.com"); err != nil {
		t.Fatalf("attendance: %v", err)
	}
	st, _ := repo.GetStudentByEmail(ctx, "ana@x.com")
	if err := repo.SubmitFeedback(ctx, eventID, st.ID, 3, nil); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	n, err := repo.DeleteAllEvents(ctx)
	if err != nil {
		t.Fatalf("delete all events: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted event, got %d", n)
	}
	for _, table := range []string{"registrations", "attendance", "feedback"} {
		if got := rowCount(t, db, table); got != 0 {
			t.Fatalf("expected %s cascade to empty, got %d rows", table, got)
		}
	}
	// Students are not owned by events and must survive.
	if got := rowCount(t, db, "students"); got != 1 {
		t.Fatalf("expected student to survive, got %d rows", got)
	}
}

func TestBulkDeletesOnEmptyTables(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context) (int64, error){
		"events":        repo.DeleteAllEvents,
		"registrations": repo.DeleteAllRegistrations,
		"attendance":    repo.DeleteAllAttendance,
		"feedback":      repo.DeleteAllFeedback,
	} {
		n, err := fn(ctx)
		if err != nil {
			t.Fatalf("bulk delete %s on empty table: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("bulk delete %s: expected 0, got %d", name, n)
		}
	}
}

func TestCreateOrGetStudentIdempotent(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	first, created, err := repo.CreateOrGetStudent(ctx, "Ana", "ana@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first call")
	}

	second, created, err := repo.CreateOrGetStudent(ctx, "Renamed", "ana@x.com")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatalf("expected created=false on second call")
	}
	if second.ID != first.ID || second.Name != "Ana" {
		t.Fatalf("existing student must be returned unchanged, got %+v", second)
	}
}

func TestListEventsIncludesCounts(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	busy := mustCreateEvent(t, repo, "Busy")
	mustCreateEvent(t, repo, "Quiet")
	if _, _, err := repo.Register(ctx, busy, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	list, err := repo.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].Registrations != 1 || list[1].Registrations != 0 {
		t.Fatalf("unexpected counts: %+v", list)
	}
}

func TestListStudentEvents(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	e1 := mustCreateEvent(t, repo, "First")
	e2 := mustCreateEvent(t, repo, "Second")
	if _, _, err := repo.Register(ctx, e1, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := repo.Register(ctx, e2, "Ana", "ana@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	st, _ := repo.GetStudentByEmail(ctx, "ana@x.com")
	evs, err := repo.ListStudentEvents(ctx, st.ID)
	if err != nil {
		t.Fatalf("list student events: %v", err)
	}
	if len(evs) != 2 || evs[0].EventID != e1 || evs[1].EventID != e2 {
		t.Fatalf("unexpected student events: %+v", evs)
	}
}
