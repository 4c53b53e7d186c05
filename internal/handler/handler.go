// Package handler maps the HTTP surface onto the directory and ledger
// operations. Response shapes follow the original API: a success flag
// plus payload, with "Already marked today" as an expected outcome
// rather than an error status.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/directory"
	"rollcall/internal/ledger"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/scanclient"
	"rollcall/internal/storage"
)

// Handler holds the core services the routes dispatch to.
type Handler struct {
	dir    *directory.Service
	ledger *ledger.Service
	scan   *scanclient.Client // nil when the decode service is not configured
	queue  queue.Queue        // nil disables mark-event publishing
}

// New creates a handler. scan and q may be nil.
func New(dir *directory.Service, led *ledger.Service, scan *scanclient.Client, q queue.Queue) *Handler {
	return &Handler{dir: dir, ledger: led, scan: scan, queue: q}
}

// Register wires the API routes onto r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/students", h.ListStudents)
		api.POST("/students", h.RegisterStudent)
		api.GET("/students/:id", h.GetStudent)
		api.DELETE("/students/:id", h.DeleteStudent)

		api.POST("/attendance", h.MarkAttendance)
		api.GET("/attendance", h.ListAttendance)
		api.GET("/attendance/count/:studentId", h.AttendanceCount)

		api.GET("/dashboard", h.Dashboard)
		api.POST("/scan", h.Scan)
	}
}

// ---------- Students ----------

type registerRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" binding:"required"`
	Course string `json:"course" binding:"required"`
	Roll   string `json:"roll" binding:"required"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Photo  string `json:"photo"`
}

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	st, err := h.dir.Register(c.Request.Context(), model.Student{
		ID:     req.ID,
		Name:   req.Name,
		Course: req.Course,
		Roll:   req.Roll,
		Phone:  req.Phone,
		Email:  req.Email,
		Photo:  req.Photo,
	})
	if errors.Is(err, storage.ErrDuplicateStudent) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "student already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": st.ID, "student": st})
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.dir.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.dir.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrStudentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	err := h.dir.Remove(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrStudentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "student not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------- Attendance ----------

type markRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	OccurredAt string `json:"occurred_at"` // RFC 3339, optional
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var occurredAt time.Time
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "occurred_at must be RFC 3339"})
			return
		}
		occurredAt = t
	}

	h.mark(c, req.StudentID, occurredAt)
}

// mark runs the shared mark flow for the JSON and scan endpoints.
func (h *Handler) mark(c *gin.Context, studentID string, occurredAt time.Time) {
	res, err := h.ledger.Mark(c.Request.Context(), studentID, occurredAt)
	if errors.Is(err, ledger.ErrUnknownStudent) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "unknown student: " + studentID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if res.Already {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Already marked today",
			"time":    res.Record.Time,
		})
		return
	}

	h.publishMark(c.Request.Context(), res.Record.Date)
	c.JSON(http.StatusCreated, gin.H{"success": true, "record": res.Record})
}

func (h *Handler) publishMark(ctx context.Context, date string) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Publish(ctx, queue.Message{Type: "mark", Body: []byte(date)}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func (h *Handler) ListAttendance(c *gin.Context) {
	var (
		records []model.AttendanceRecord
		err     error
	)
	if date := c.Query("date"); date != "" {
		if _, perr := time.Parse(model.DateLayout, date); perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		records, err = h.ledger.RecordsForDay(c.Request.Context(), date)
	} else {
		records, err = h.ledger.AllRecords(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) AttendanceCount(c *gin.Context) {
	count, err := h.ledger.CountForStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) Dashboard(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.ledger.Today()
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	sum, err := h.ledger.DashboardSummary(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ---------- Scan ----------

// Scan accepts an uploaded image, asks the external decode service for
// the student identifier, and marks attendance for it.
func (h *Handler) Scan(c *gin.Context) {
	if h.scan == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "scan service not configured"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "image file is required"})
		return
	}
	defer file.Close()

	result, err := h.scan.Decode(c.Request.Context(), file, header.Filename)
	if err != nil {
		log.Printf("scan decode failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "decode failed"})
		return
	}
	if !result.Found {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "no barcode found in image"})
		return
	}

	h.mark(c, result.StudentID, time.Time{})
}
