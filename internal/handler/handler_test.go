package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/directory"
	"rollcall/internal/ledger"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store := memory.New()
	dir := directory.NewService(store, nil)
	led := ledger.NewService(store, dir, nil, time.UTC)
	q := queue.NewInMemory(16)

	r := gin.New()
	New(dir, led, nil, q).Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAndListStudents(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/students", gin.H{
		"name": "Mayank Kushwaha", "course": "BCA 3rd Year", "roll": "STU001",
		"phone": "9876543210", "email": "mayank@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "STU001", body["id"])

	// duplicate identifier
	w = doJSON(t, r, http.MethodPost, "/api/students", gin.H{
		"name": "Someone Else", "course": "BCA 1st Year", "roll": "STU001",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	// missing required fields
	w = doJSON(t, r, http.MethodPost, "/api/students", gin.H{"name": "No Course"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var students []model.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &students))
	require.Len(t, students, 1)
	assert.Equal(t, "MK", students[0].Photo)
}

func TestGetStudentNotFound(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/students/STU999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkAttendanceFlow(t *testing.T) {
	r := newTestRouter(t)

	for i := 1; i <= 5; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/students", gin.H{
			"name":   fmt.Sprintf("Student %03d", i),
			"course": "BCA 3rd Year",
			"roll":   fmt.Sprintf("STU%03d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{
		"student_id": "STU001", "occurred_at": "2026-08-28T09:15:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])

	// second mark the same day: expected outcome, not an error status
	w = doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{
		"student_id": "STU001", "occurred_at": "2026-08-28T11:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Already marked today", body["message"])
	assert.Equal(t, "09:15:00", body["time"])

	// unknown student
	w = doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{"student_id": "STU999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// bad timestamp
	w = doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{
		"student_id": "STU001", "occurred_at": "yesterday",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// dashboard for the day
	w = doJSON(t, r, http.MethodGet, "/api/dashboard?date=2026-08-28", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum model.DashboardSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, model.DashboardSummary{
		Date: "2026-08-28", Total: 5, Present: 1, Absent: 4, Rate: 20,
	}, sum)

	// count endpoint
	w = doJSON(t, r, http.MethodGet, "/api/attendance/count/STU001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestListAttendanceDateFilter(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/students", gin.H{
		"name": "Priya Singh", "course": "BCA 1st Year", "roll": "STU003",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	for _, ts := range []string{"2026-08-27T09:00:00Z", "2026-08-28T09:00:00Z"} {
		w = doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{
			"student_id": "STU003", "occurred_at": ts,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/attendance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []model.AttendanceRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "2026-08-28", records[0].Date, "most recent first")
	assert.Equal(t, "Priya Singh", records[0].Name)

	w = doJSON(t, r, http.MethodGet, "/api/attendance?date=2026-08-27", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)

	w = doJSON(t, r, http.MethodGet, "/api/attendance?date=28-08-2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteStudentCascades(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/students", gin.H{
		"name": "X Y", "course": "BCA 1st Year", "roll": "STU006",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/attendance", gin.H{
		"student_id": "STU006", "occurred_at": "2026-08-28T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/students/STU006", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/students/STU006", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/attendance/count/STU006", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = doJSON(t, r, http.MethodDelete, "/api/students/STU006", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanWithoutService(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
