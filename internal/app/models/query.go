package models

import "time"

// QueryStatus represents the lifecycle state of a tutoring query
type QueryStatus string

const (
	QueryStatusPending   QueryStatus = "PENDING"
	QueryStatusAccepted  QueryStatus = "ACCEPTED"
	QueryStatusInSession QueryStatus = "IN_SESSION"
	QueryStatusCompleted QueryStatus = "COMPLETED"
)

// Query represents a student's posted tutoring request.
// AcceptedTutorID is non-null exactly when the status has left PENDING.
type Query struct {
	ID              int64       `json:"id" db:"id"`
	Subject         string      `json:"subject" db:"subject"`
	Subtopic        string      `json:"subtopic" db:"subtopic"`
	Body            string      `json:"query" db:"body"`
	StudentID       int64       `json:"studentId" db:"student_id"`
	Status          QueryStatus `json:"status" db:"status"`
	AcceptedTutorID *int64      `json:"acceptedTutorId,omitempty" db:"accepted_tutor_id"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
	AcceptedAt      *time.Time  `json:"acceptedAt,omitempty" db:"accepted_at"`

	// Related entities, populated by list queries
	Student       *User    `json:"student,omitempty"`
	AcceptedTutor *User    `json:"acceptedTutor,omitempty"`
	LatestSession *Session `json:"latestSession,omitempty"`
}

// Decline records a tutor's explicit pass on a query. Its existence hides the
// query from that tutor's pending feed until the tutor accepts the query.
type Decline struct {
	QueryID   int64     `json:"queryId" db:"query_id"`
	TutorID   int64     `json:"tutorId" db:"tutor_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
