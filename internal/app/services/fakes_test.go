package services

import (
	"context"
	"sync"
	"time"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/pkg/apperrors"
)

// memStore is an in-memory implementation of every store interface, guarded
// by a single mutex so concurrent accept tests exercise real contention.
type memStore struct {
	mu sync.Mutex

	nextUserID    int64
	nextQueryID   int64
	nextSessionID int64

	users    map[int64]*models.User
	queries  map[int64]*models.Query
	declines map[[2]int64]time.Time
	sessions map[int64]*models.Session

	refreshTokens map[string]*memToken
	resetTokens   map[string]*memToken
}

type memToken struct {
	userID  int64
	expiry  time.Time
	revoked bool
	used    bool
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]*models.User),
		queries:       make(map[int64]*models.Query),
		declines:      make(map[[2]int64]time.Time),
		sessions:      make(map[int64]*models.Session),
		refreshTokens: make(map[string]*memToken),
		resetTokens:   make(map[string]*memToken),
	}
}

func (s *memStore) Create(ctx context.Context, user *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return 0, apperrors.ErrEmailAlreadyExists
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	s.users[user.ID] = &copied
	return user.ID, nil
}

func (s *memStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (s *memStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user.Password = passwordHash
	return nil
}

func (s *memStore) UpdateTutorProfile(ctx context.Context, userID int64, bio, education *string, specialties []string, ratePer10Min *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user.Bio = bio
	user.Education = education
	user.Specialties = specialties
	user.RatePer10Min = ratePer10Min
	return nil
}

func (s *memStore) CreateQuery(ctx context.Context, query *models.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQueryID++
	query.ID = s.nextQueryID
	query.Status = models.QueryStatusPending
	query.CreatedAt = time.Now()
	query.UpdatedAt = query.CreatedAt
	copied := *query
	s.queries[query.ID] = &copied
	return query.ID, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, ok := s.queries[id]
	if !ok {
		return nil, apperrors.ErrQueryNotFound
	}
	copied := *query
	return &copied, nil
}

func (s *memStore) ListPendingForTutor(ctx context.Context, tutor *models.User) ([]*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Query
	for _, query := range s.queries {
		if query.Status != models.QueryStatusPending {
			continue
		}
		if _, declined := s.declines[[2]int64{query.ID, tutor.ID}]; declined {
			continue
		}
		if len(tutor.Specialties) > 0 && !contains(tutor.Specialties, query.Subtopic) {
			continue
		}
		copied := *query
		if student, ok := s.users[query.StudentID]; ok {
			studentCopy := *student
			copied.Student = &studentCopy
		}
		result = append(result, &copied)
	}

	// Newest first
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (s *memStore) Accept(ctx context.Context, queryID, tutorID int64) (*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, ok := s.queries[queryID]
	if !ok {
		return nil, apperrors.ErrQueryNotFound
	}
	if query.Status != models.QueryStatusPending {
		return nil, apperrors.ErrQueryNotAvailable
	}

	now := time.Now()
	query.Status = models.QueryStatusAccepted
	query.AcceptedTutorID = &tutorID
	query.AcceptedAt = &now
	query.UpdatedAt = now
	delete(s.declines, [2]int64{queryID, tutorID})

	copied := *query
	return &copied, nil
}

func (s *memStore) ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Query
	for _, query := range s.queries {
		if query.AcceptedTutorID == nil || *query.AcceptedTutorID != tutorID {
			continue
		}
		copied := *query
		if student, ok := s.users[query.StudentID]; ok {
			studentCopy := *student
			copied.Student = &studentCopy
		}
		copied.LatestSession = s.latestSessionLocked(query.ID)
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memStore) ListForStudent(ctx context.Context, studentID int64) ([]*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Query
	for _, query := range s.queries {
		if query.StudentID != studentID {
			continue
		}
		copied := *query
		if query.AcceptedTutorID != nil {
			if tutor, ok := s.users[*query.AcceptedTutorID]; ok {
				tutorCopy := *tutor
				copied.AcceptedTutor = &tutorCopy
			}
		}
		copied.LatestSession = s.latestSessionLocked(query.ID)
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memStore) latestSessionLocked(queryID int64) *models.Session {
	var latest *models.Session
	for _, session := range s.sessions {
		if session.QueryID != queryID {
			continue
		}
		if latest == nil || session.StartedAt.After(latest.StartedAt) {
			copied := *session
			latest = &copied
		}
	}
	return latest
}

func (s *memStore) Upsert(ctx context.Context, queryID, tutorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queries[queryID]; !ok {
		return apperrors.ErrQueryNotFound
	}
	s.declines[[2]int64{queryID, tutorID}] = time.Now()
	return nil
}

func (s *memStore) Exists(ctx context.Context, queryID, tutorID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.declines[[2]int64{queryID, tutorID}]
	return ok, nil
}

func (s *memStore) GetSessionByID(ctx context.Context, id int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memStore) Start(ctx context.Context, queryID, tutorID, studentID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, ok := s.queries[queryID]
	if !ok {
		return 0, false, apperrors.ErrQueryNotFound
	}
	if query.Status != models.QueryStatusAccepted && query.Status != models.QueryStatusInSession {
		return 0, false, apperrors.ErrQueryNotAvailable
	}

	for _, session := range s.sessions {
		if session.QueryID == queryID && session.Status == models.SessionStatusActive {
			return session.ID, true, nil
		}
	}

	s.nextSessionID++
	session := &models.Session{
		ID:        s.nextSessionID,
		QueryID:   queryID,
		TutorID:   tutorID,
		StudentID: studentID,
		Status:    models.SessionStatusActive,
		StartedAt: time.Now(),
	}
	s.sessions[session.ID] = session
	query.Status = models.QueryStatusInSession
	return session.ID, false, nil
}

func (s *memStore) End(ctx context.Context, sessionID int64) (*models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, false, apperrors.ErrSessionNotFound
	}
	if session.Status == models.SessionStatusEnded {
		copied := *session
		return &copied, true, nil
	}

	now := time.Now()
	session.Status = models.SessionStatusEnded
	session.EndedAt = &now
	if query, ok := s.queries[session.QueryID]; ok {
		query.Status = models.QueryStatusCompleted
	}

	copied := *session
	return &copied, false, nil
}

func (s *memStore) CreateToken(ctx context.Context, token string, userID int64, expiryDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[token] = &memToken{userID: userID, expiry: expiryDate}
	return nil
}

func (s *memStore) GetTokenByValue(ctx context.Context, token string) (int64, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refreshTokens[token]
	if !ok {
		return 0, time.Time{}, false, apperrors.ErrTokenNotFound
	}
	return t.userID, t.expiry, t.revoked, nil
}

func (s *memStore) RevokeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refreshTokens[token]
	if !ok {
		return apperrors.ErrTokenNotFound
	}
	t.revoked = true
	return nil
}

func (s *memStore) CreateResetToken(ctx context.Context, userID int64, token string, expiryDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetTokens[token] = &memToken{userID: userID, expiry: expiryDate}
	return nil
}

func (s *memStore) GetTokenInfo(ctx context.Context, token string) (int64, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.resetTokens[token]
	if !ok {
		return 0, time.Time{}, false, apperrors.ErrInvalidPasswordResetToken
	}
	return t.userID, t.expiry, t.used, nil
}

func (s *memStore) MarkTokenAsUsed(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.resetTokens[token]
	if !ok {
		return apperrors.ErrInvalidPasswordResetToken
	}
	t.used = true
	return nil
}

// The store interfaces overlap on method names (Create, GetByID,
// CreateToken), so thin wrappers expose the right method sets.

type memQueryStore struct{ *memStore }

func (q memQueryStore) Create(ctx context.Context, query *models.Query) (int64, error) {
	return q.memStore.CreateQuery(ctx, query)
}

type memSessionStore struct{ *memStore }

func (s memSessionStore) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	return s.memStore.GetSessionByID(ctx, id)
}

type memResetTokenStore struct{ *memStore }

func (r memResetTokenStore) CreateToken(ctx context.Context, userID int64, token string, expiryDate time.Time) error {
	return r.memStore.CreateResetToken(ctx, userID, token, expiryDate)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// recordedEvent is a broadcast captured by fakeBroadcaster
type recordedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

// fakeBroadcaster records broadcasts instead of delivering them
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) record(room, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) BroadcastToTutors(event string, payload interface{}) {
	b.record("tutors", event, payload)
}

func (b *fakeBroadcaster) BroadcastToTutor(tutorID int64, event string, payload interface{}) {
	b.record("tutor", event, payload)
}

func (b *fakeBroadcaster) BroadcastToStudent(studentID int64, event string, payload interface{}) {
	b.record("student", event, payload)
}

func (b *fakeBroadcaster) BroadcastToSession(sessionID int64, event string, payload interface{}) {
	b.record("session", event, payload)
}

func (b *fakeBroadcaster) byEvent(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []recordedEvent
	for _, e := range b.events {
		if e.Event == event {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeMailer records sent emails
type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendPasswordResetEmail(toEmail, toName, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, token)
	return nil
}

func (m *fakeMailer) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}
