package model

import "time"

// Date and time layouts used everywhere a record is rendered or keyed.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Student is a registered student profile. ID is caller-supplied
// (canonically the roll number) and immutable once assigned.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Course    string    `json:"course"`
	Roll      string    `json:"roll"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Photo     string    `json:"photo,omitempty"` // display initials
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceRecord is one successful check-in. At most one record exists
// per (StudentID, Date) pair. Name and Course are joined from the student
// at query time, never stored on the record.
type AttendanceRecord struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	Name         string `json:"name,omitempty"`
	Course       string `json:"course,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	FullDateTime string `json:"full_datetime"`
	Timestamp    int64  `json:"timestamp"` // ms since epoch, sort key
}

// DashboardSummary is the teacher-portal view of one calendar day.
type DashboardSummary struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Rate    int    `json:"rate"` // percent, rounded half-up
}
