package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/realtime"
)

// QueryService is the lifecycle engine: it enforces the query/session state
// machine (pending -> accepted -> in-session -> completed, with per-tutor
// declines) and fans each committed transition out to the parties that need
// to hear about it. Store transactions commit before any broadcast is
// emitted, so a client that polls after receiving an event never observes
// state older than the event payload.
type QueryService interface {
	PostQuery(ctx context.Context, req *dto.PostQueryRequest) (int64, error)
	ListPendingForTutor(ctx context.Context, tutorID int64) ([]dto.QuerySummary, error)
	AcceptQuery(ctx context.Context, queryID, tutorID int64) error
	DeclineQuery(ctx context.Context, queryID, tutorID int64) error
	StartSession(ctx context.Context, queryID, tutorID, studentID int64) (sessionID int64, existing bool, err error)
	EndSession(ctx context.Context, sessionID, endedBy int64) error
	UpdateTutorProfile(ctx context.Context, req *dto.UpdateProfileRequest) error
	ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]dto.AcceptedQuery, error)
	ListResponsesForStudent(ctx context.Context, studentID int64) ([]dto.TutorResponse, error)

	// CanJoinSession implements realtime room-join gating: only the session's
	// tutor or student may join its room.
	CanJoinSession(ctx context.Context, sessionID, userID int64) (bool, error)
}

// queryServiceImpl implements QueryService
type queryServiceImpl struct {
	userStore    UserStore
	queryStore   QueryStore
	declineStore DeclineStore
	sessionStore SessionStore
	broadcaster  Broadcaster
	logger       zerolog.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	userStore UserStore,
	queryStore QueryStore,
	declineStore DeclineStore,
	sessionStore SessionStore,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) QueryService {
	return &queryServiceImpl{
		userStore:    userStore,
		queryStore:   queryStore,
		declineStore: declineStore,
		sessionStore: sessionStore,
		broadcaster:  broadcaster,
		logger:       logger,
	}
}

// TutorAcceptedEvent is the payload delivered to the student's room when a
// tutor accepts their query
type TutorAcceptedEvent struct {
	QueryID      int64    `json:"queryId"`
	TutorID      int64    `json:"tutorId"`
	TutorName    string   `json:"tutorName"`
	RatePer10Min *float64 `json:"rate,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	Education    *string  `json:"education,omitempty"`
}

// SessionEndedEvent is the payload delivered to the session, tutor and
// student rooms when a session ends, carrying enough ids for any observer to
// reconcile local state
type SessionEndedEvent struct {
	SessionID int64 `json:"sessionId"`
	EndedBy   int64 `json:"endedBy"`
	QueryID   int64 `json:"queryId"`
	TutorID   int64 `json:"tutorId"`
	StudentID int64 `json:"studentId"`
}

// PostQuery validates and creates a pending query, then notifies all
// connected tutors
func (s *queryServiceImpl) PostQuery(ctx context.Context, req *dto.PostQueryRequest) (int64, error) {
	if strings.TrimSpace(req.Subject) == "" ||
		strings.TrimSpace(req.Subtopic) == "" ||
		strings.TrimSpace(req.Query) == "" {
		return 0, apperrors.NewValidationError("subject, subtopic and query are required")
	}

	student, err := s.userStore.FindByID(ctx, req.StudentID)
	if err != nil {
		return 0, err
	}

	query := &models.Query{
		Subject:   req.Subject,
		Subtopic:  req.Subtopic,
		Body:      req.Query,
		StudentID: student.ID,
	}

	queryID, err := s.queryStore.Create(ctx, query)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("queryID", queryID).
		Str("subject", req.Subject).
		Str("subtopic", req.Subtopic).
		Int64("studentID", student.ID).
		Msg("New query posted")

	s.broadcaster.BroadcastToTutors(realtime.EventNewQuery, dto.QuerySummary{
		ID:          queryID,
		Subject:     query.Subject,
		Subtopic:    query.Subtopic,
		Query:       query.Body,
		StudentID:   student.ID,
		StudentName: student.Username,
		Status:      string(query.Status),
		CreatedAt:   query.CreatedAt,
	})

	return queryID, nil
}

// ListPendingForTutor returns the tutor's pending feed: queries matching the
// tutor's specialties (all pending queries if none declared), minus declined
// ones, newest first
func (s *queryServiceImpl) ListPendingForTutor(ctx context.Context, tutorID int64) ([]dto.QuerySummary, error) {
	tutor, err := s.requireTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	queries, err := s.queryStore.ListPendingForTutor(ctx, tutor)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.QuerySummary, 0, len(queries))
	for _, q := range queries {
		summary := dto.QuerySummary{
			ID:        q.ID,
			Subject:   q.Subject,
			Subtopic:  q.Subtopic,
			Query:     q.Body,
			StudentID: q.StudentID,
			Status:    string(q.Status),
			CreatedAt: q.CreatedAt,
		}
		if q.Student != nil {
			summary.StudentName = q.Student.Username
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// AcceptQuery atomically moves a pending query to accepted for the tutor and
// notifies the posting student. Of two racing accepts exactly one succeeds;
// the loser gets ErrQueryNotAvailable.
func (s *queryServiceImpl) AcceptQuery(ctx context.Context, queryID, tutorID int64) error {
	tutor, err := s.requireTutor(ctx, tutorID)
	if err != nil {
		return err
	}

	accepted, err := s.queryStore.Accept(ctx, queryID, tutorID)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("queryID", queryID).
		Int64("tutorID", tutorID).
		Msg("Tutor accepted query")

	s.broadcaster.BroadcastToStudent(accepted.StudentID, realtime.EventTutorAccepted, TutorAcceptedEvent{
		QueryID:      accepted.ID,
		TutorID:      tutor.ID,
		TutorName:    tutor.Username,
		RatePer10Min: tutor.RatePer10Min,
		Bio:          tutor.Bio,
		Education:    tutor.Education,
	})

	return nil
}

// DeclineQuery records an idempotent decline; the query stays pending and no
// broadcast is emitted
func (s *queryServiceImpl) DeclineQuery(ctx context.Context, queryID, tutorID int64) error {
	if _, err := s.requireTutor(ctx, tutorID); err != nil {
		return err
	}

	if err := s.declineStore.Upsert(ctx, queryID, tutorID); err != nil {
		return err
	}

	s.logger.Debug().
		Int64("queryID", queryID).
		Int64("tutorID", tutorID).
		Msg("Tutor declined query")

	return nil
}

// StartSession creates an active session for an accepted query, or returns
// the existing active session id unchanged
func (s *queryServiceImpl) StartSession(ctx context.Context, queryID, tutorID, studentID int64) (int64, bool, error) {
	sessionID, existing, err := s.sessionStore.Start(ctx, queryID, tutorID, studentID)
	if err != nil {
		return 0, false, err
	}

	if !existing {
		s.logger.Info().
			Int64("sessionID", sessionID).
			Int64("queryID", queryID).
			Int64("tutorID", tutorID).
			Int64("studentID", studentID).
			Msg("Session created")
	}

	return sessionID, existing, nil
}

// EndSession terminates a session and completes its query, then notifies the
// session room and both parties' private rooms. Ending an already-ended
// session succeeds without re-broadcasting.
func (s *queryServiceImpl) EndSession(ctx context.Context, sessionID, endedBy int64) error {
	session, alreadyEnded, err := s.sessionStore.End(ctx, sessionID)
	if err != nil {
		return err
	}

	if alreadyEnded {
		return nil
	}

	s.logger.Info().
		Int64("sessionID", sessionID).
		Int64("queryID", session.QueryID).
		Int64("endedBy", endedBy).
		Msg("Session ended")

	event := SessionEndedEvent{
		SessionID: session.ID,
		EndedBy:   endedBy,
		QueryID:   session.QueryID,
		TutorID:   session.TutorID,
		StudentID: session.StudentID,
	}

	s.broadcaster.BroadcastToSession(session.ID, realtime.EventSessionEnded, event)
	s.broadcaster.BroadcastToTutor(session.TutorID, realtime.EventSessionEnded, event)
	s.broadcaster.BroadcastToStudent(session.StudentID, realtime.EventSessionEnded, event)

	return nil
}

// UpdateTutorProfile validates and persists a tutor's profile fields
func (s *queryServiceImpl) UpdateTutorProfile(ctx context.Context, req *dto.UpdateProfileRequest) error {
	if _, err := s.requireTutor(ctx, req.UserID); err != nil {
		return err
	}

	if req.RatePer10Min != nil && *req.RatePer10Min < 0 {
		return apperrors.NewCustomError(apperrors.ErrInvalidRate, "ratePer10Min must not be negative")
	}

	var bio, education *string
	if req.Bio != "" {
		bio = &req.Bio
	}
	if req.Education != "" {
		education = &req.Education
	}

	return s.userStore.UpdateTutorProfile(ctx, req.UserID, bio, education, req.Specialties, req.RatePer10Min)
}

// ListAcceptedForTutor returns the tutor's accepted queries with the latest
// session per query
func (s *queryServiceImpl) ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]dto.AcceptedQuery, error) {
	if _, err := s.requireTutor(ctx, tutorID); err != nil {
		return nil, err
	}

	queries, err := s.queryStore.ListAcceptedForTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	accepted := make([]dto.AcceptedQuery, 0, len(queries))
	for _, q := range queries {
		item := dto.AcceptedQuery{
			ID:         q.ID,
			Subject:    q.Subject,
			Subtopic:   q.Subtopic,
			Query:      q.Body,
			StudentID:  q.StudentID,
			Status:     string(q.Status),
			AcceptedAt: q.AcceptedAt,
			Session:    sessionInfo(q.LatestSession),
		}
		if q.Student != nil {
			item.StudentName = q.Student.Username
		}
		accepted = append(accepted, item)
	}

	return accepted, nil
}

// ListResponsesForStudent returns the student's queries with accepting-tutor
// details and the latest session per query
func (s *queryServiceImpl) ListResponsesForStudent(ctx context.Context, studentID int64) ([]dto.TutorResponse, error) {
	if _, err := s.userStore.FindByID(ctx, studentID); err != nil {
		return nil, err
	}

	queries, err := s.queryStore.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TutorResponse, 0, len(queries))
	for _, q := range queries {
		item := dto.TutorResponse{
			QueryID:    q.ID,
			Subject:    q.Subject,
			Subtopic:   q.Subtopic,
			Status:     string(q.Status),
			TutorID:    q.AcceptedTutorID,
			AcceptedAt: q.AcceptedAt,
			Session:    sessionInfo(q.LatestSession),
		}
		if q.AcceptedTutor != nil {
			item.TutorName = q.AcceptedTutor.Username
			item.RatePer10Min = q.AcceptedTutor.RatePer10Min
			item.Bio = q.AcceptedTutor.Bio
			item.Education = q.AcceptedTutor.Education
		}
		responses = append(responses, item)
	}

	return responses, nil
}

// CanJoinSession allows only the session's tutor or student into its room
func (s *queryServiceImpl) CanJoinSession(ctx context.Context, sessionID, userID int64) (bool, error) {
	session, err := s.sessionStore.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	return session.TutorID == userID || session.StudentID == userID, nil
}

// requireTutor resolves a user id that must belong to a tutor
func (s *queryServiceImpl) requireTutor(ctx context.Context, tutorID int64) (*models.User, error) {
	user, err := s.userStore.FindByID(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if !user.IsTutor() {
		return nil, apperrors.ErrNotATutor
	}
	return user, nil
}

// sessionInfo maps a session model to its DTO form
func sessionInfo(session *models.Session) *dto.SessionInfo {
	if session == nil {
		return nil
	}
	return &dto.SessionInfo{
		ID:        session.ID,
		Status:    string(session.Status),
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}
}
