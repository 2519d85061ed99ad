package models

import "time"

// SessionStatus represents whether a tutoring session is live
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusEnded  SessionStatus = "ENDED"
)

// Session represents a live tutor-student collaboration instance tied to one
// accepted query. A query has at most one ACTIVE session at a time but may
// accumulate ended sessions if re-opened.
type Session struct {
	ID        int64         `json:"id" db:"id"`
	QueryID   int64         `json:"queryId" db:"query_id"`
	TutorID   int64         `json:"tutorId" db:"tutor_id"`
	StudentID int64         `json:"studentId" db:"student_id"`
	Status    SessionStatus `json:"status" db:"status"`
	StartedAt time.Time     `json:"startedAt" db:"started_at"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" db:"ended_at"`
}

// IsEnded reports whether the session has been terminated.
func (s *Session) IsEnded() bool {
	return s.Status == SessionStatusEnded
}
