package models

import (
	"time"
)

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "STUDENT"
	RoleTutor   RoleType = "TUTOR"
)

// User defines the user model based on the 'users' table. Tutor-only profile
// fields (bio, education, specialties, rate) are null for students.
type User struct {
	ID           int64     `json:"id" db:"id" example:"1"`                                   // Unique identifier for the user
	Username     string    `json:"username" db:"username" example:"janedoe"`                 // Display name shown to the other party
	Email        string    `json:"email" db:"email" example:"jane@example.com"`              // User's email address
	Password     string    `json:"-" db:"password"`                                          // User's hashed password (excluded from JSON)
	RoleType     RoleType  `json:"roleType" db:"role_type" example:"STUDENT"`                // User's role (STUDENT or TUTOR)
	Bio          *string   `json:"bio,omitempty" db:"bio"`                                   // Tutor biography (nullable)
	Education    *string   `json:"education,omitempty" db:"education"`                       // Tutor education summary (nullable)
	Specialties  []string  `json:"specialties" db:"specialties"`                             // Subtopics a tutor covers
	RatePer10Min *float64  `json:"ratePer10Min,omitempty" db:"rate_per_10_min"`              // Tutor rate per 10 minutes (nullable, >= 0)
	CreatedAt    time.Time `json:"createdAt" db:"created_at" example:"2024-01-01T10:00:00Z"` // Timestamp when the user was created
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at" example:"2024-01-02T15:30:00Z"` // Timestamp when the user was last updated
}

// IsTutor reports whether the user is registered as a tutor.
func (u *User) IsTutor() bool {
	return u.RoleType == RoleTutor
}
