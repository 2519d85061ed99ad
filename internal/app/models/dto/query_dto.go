package dto

import "time"

// PostQueryRequest represents the payload for posting a new tutoring query
type PostQueryRequest struct {
	Subject   string `json:"subject" binding:"required" example:"Math"`
	Subtopic  string `json:"subtopic" binding:"required" example:"Calculus"`
	Query     string `json:"query" binding:"required" example:"Need help with limits"`
	StudentID int64  `json:"studentId" binding:"required" example:"1"`
}

// PostQueryResponse carries the id of a newly created query
type PostQueryResponse struct {
	Message string `json:"message" example:"Query posted successfully"`
	QueryID int64  `json:"queryId" example:"42"`
}

// AcceptQueryRequest represents the payload for a tutor accepting a query
type AcceptQueryRequest struct {
	QueryID int64 `json:"queryId" binding:"required"`
	TutorID int64 `json:"tutorId" binding:"required"`
}

// DeclineQueryRequest represents the payload for a tutor declining a query
type DeclineQueryRequest struct {
	QueryID int64 `json:"queryId" binding:"required"`
	TutorID int64 `json:"tutorId" binding:"required"`
}

// StartSessionRequest represents the payload for starting a tutoring session
type StartSessionRequest struct {
	QueryID   int64 `json:"queryId" binding:"required"`
	TutorID   int64 `json:"tutorId" binding:"required"`
	StudentID int64 `json:"studentId" binding:"required"`
}

// StartSessionResponse carries the id of the active session for a query
type StartSessionResponse struct {
	Message   string `json:"message" example:"Session created successfully"`
	SessionID int64  `json:"sessionId" example:"7"`
	// Existing is true when an active session already existed for the query
	Existing bool `json:"existing,omitempty"`
}

// EndSessionRequest represents the payload for ending a tutoring session
type EndSessionRequest struct {
	SessionID int64 `json:"sessionId" binding:"required"`
	EndedBy   int64 `json:"endedBy" binding:"required"`
}

// UpdateProfileRequest represents the tutor profile update payload
type UpdateProfileRequest struct {
	UserID       int64    `json:"userId" binding:"required"`
	Bio          string   `json:"bio"`
	Education    string   `json:"education"`
	Specialties  []string `json:"specialties"`
	RatePer10Min *float64 `json:"ratePer10Min"`
}

// QuerySummary represents a pending query in a tutor's feed
type QuerySummary struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Subtopic    string    `json:"subtopic"`
	Query       string    `json:"query"`
	StudentID   int64     `json:"studentId"`
	StudentName string    `json:"studentName"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionInfo represents the latest session attached to a query, if any
type SessionInfo struct {
	ID        int64      `json:"id"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// AcceptedQuery represents an accepted query in a tutor's workload view
type AcceptedQuery struct {
	ID          int64        `json:"id"`
	Subject     string       `json:"subject"`
	Subtopic    string       `json:"subtopic"`
	Query       string       `json:"query"`
	StudentID   int64        `json:"studentId"`
	StudentName string       `json:"studentName"`
	Status      string       `json:"status"`
	AcceptedAt  *time.Time   `json:"acceptedAt,omitempty"`
	Session     *SessionInfo `json:"session,omitempty"`
}

// TutorResponse represents an accepting tutor's details in a student's
// responses view
type TutorResponse struct {
	QueryID      int64        `json:"queryId"`
	Subject      string       `json:"subject"`
	Subtopic     string       `json:"subtopic"`
	Status       string       `json:"status"`
	TutorID      *int64       `json:"tutorId,omitempty"`
	TutorName    string       `json:"tutorName,omitempty"`
	RatePer10Min *float64     `json:"ratePer10Min,omitempty"`
	Bio          *string      `json:"bio,omitempty"`
	Education    *string      `json:"education,omitempty"`
	AcceptedAt   *time.Time   `json:"acceptedAt,omitempty"`
	Session      *SessionInfo `json:"session,omitempty"`
}
