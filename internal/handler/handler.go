package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"eventtrack/internal/events"
	"eventtrack/internal/logger"
	"eventtrack/internal/store"
)

// Handler translates HTTP requests into service, repository and report
// calls, and domain errors into status codes.
type Handler struct {
	svc      *events.Service
	repo     *events.Repository
	reports  *events.Reports
	db       *store.DB
	redis    *store.Redis
	log      *logger.Logger
	topLimit int
}

// New wires a handler. topLimit is the default row count for the
// top-students report.
func New(svc *events.Service, repo *events.Repository, reports *events.Reports, db *store.DB, rdb *store.Redis, log *logger.Logger, topLimit int) *Handler {
	if topLimit <= 0 {
		topLimit = 3
	}
	return &Handler{svc: svc, repo: repo, reports: reports, db: db, redis: rdb, log: log, topLimit: topLimit}
}

// fail maps the domain error taxonomy onto HTTP statuses: validation,
// precondition and conflict are caller errors (400), missing entities are
// 404, anything else is a 500 that gets logged.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		validation   *events.ValidationError
		notFound     *events.NotFoundError
		precondition *events.PreconditionError
		conflict     *events.ConflictError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &precondition), errors.As(err, &conflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// Healthz reports liveness. The store gates the status; redis is reported
// but only degrades the rate-limit backend.
func (h *Handler) Healthz(c *gin.Context) {
	dbHealthy := h.db.Client.PingContext(c.Request.Context()) == nil
	redisHealthy := h.redis.Healthy(c.Request.Context())
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
}

// ---------- Events ----------

func (h *Handler) ListEvents(c *gin.Context) {
	res, err := h.repo.ListEvents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type createEventRequest struct {
	Title     string `json:"title"`
	EventType string `json:"event_type"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.svc.CreateEvent(c.Request.Context(), req.Title, req.EventType, req.StartTime, req.EndTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "event created"})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	detail, err := h.repo.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) EventStudents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	exists, err := h.repo.EventExists(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	students, err := h.repo.ListEventStudents(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) DeleteAllEvents(c *gin.Context) {
	n, err := h.repo.DeleteAllEvents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "message": fmt.Sprintf("Deleted %d events", n)})
}

// ---------- Students ----------

type studentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, created, err := h.svc.CreateOrGetStudent(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"id": st.ID, "name": st.Name, "email": st.Email, "message": "already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": st.ID, "name": st.Name, "email": st.Email})
}

func (h *Handler) ListStudents(c *gin.Context) {
	res, err := h.repo.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	st, err := h.repo.GetStudent(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) StudentEvents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	st, err := h.repo.GetStudent(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	evs, err := h.repo.ListStudentEvents(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err := h.repo.DeleteStudent(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
}

// ---------- Registration / Attendance / Feedback ----------

func (h *Handler) RegisterStudent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	regID, already, err := h.svc.Register(c.Request.Context(), eventID, req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"message": "already registered", "registration_id": regID})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registered", "registration_id": regID})
}

type attendanceRequest struct {
	Email string `json:"email"`
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.MarkAttendance(c.Request.Context(), eventID, req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance marked"})
}

type feedbackRequest struct {
	StudentID int64  `json:"student_id"`
	Email     string `json:"email"`
	Rating    int    `json:"rating"`
	Comments  string `json:"comments"`
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "rating" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be a number"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.SubmitFeedback(c.Request.Context(), eventID, req.StudentID, req.Email, req.Rating, req.Comments)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "feedback saved"})
}

func (h *Handler) DeleteAllRegistrations(c *gin.Context) {
	n, err := h.repo.DeleteAllRegistrations(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "message": fmt.Sprintf("Deleted %d registrations", n)})
}

func (h *Handler) DeleteAllAttendance(c *gin.Context) {
	n, err := h.repo.DeleteAllAttendance(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "message": fmt.Sprintf("Deleted %d attendance records", n)})
}

func (h *Handler) DeleteAllFeedback(c *gin.Context) {
	n, err := h.repo.DeleteAllFeedback(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "message": fmt.Sprintf("Deleted %d feedbacks", n)})
}

// ---------- Reports ----------

func (h *Handler) EventPopularity(c *gin.Context) {
	res, err := h.reports.EventPopularity(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AttendancePercentage(c *gin.Context) {
	res, err := h.reports.AttendancePercentage(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AverageFeedback(c *gin.Context) {
	res, err := h.reports.AverageFeedback(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) TopStudents(c *gin.Context) {
	limit := h.topLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	res, err := h.reports.TopStudents(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
