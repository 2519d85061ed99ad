package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/controllers"
	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/pkg/apperrors"
)

// stubQueryService returns canned results per method
type stubQueryService struct {
	postQueryID  int64
	postErr      error
	acceptErr    error
	pending      []dto.QuerySummary
	pendingErr   error
	startID      int64
	startExists  bool
	startErr     error
	endErr       error
	profileErr   error
	declineErr   error
	accepted     []dto.AcceptedQuery
	responses    []dto.TutorResponse
	canJoin      bool
}

func (s *stubQueryService) PostQuery(ctx context.Context, req *dto.PostQueryRequest) (int64, error) {
	return s.postQueryID, s.postErr
}

func (s *stubQueryService) ListPendingForTutor(ctx context.Context, tutorID int64) ([]dto.QuerySummary, error) {
	return s.pending, s.pendingErr
}

func (s *stubQueryService) AcceptQuery(ctx context.Context, queryID, tutorID int64) error {
	return s.acceptErr
}

func (s *stubQueryService) DeclineQuery(ctx context.Context, queryID, tutorID int64) error {
	return s.declineErr
}

func (s *stubQueryService) StartSession(ctx context.Context, queryID, tutorID, studentID int64) (int64, bool, error) {
	return s.startID, s.startExists, s.startErr
}

func (s *stubQueryService) EndSession(ctx context.Context, sessionID, endedBy int64) error {
	return s.endErr
}

func (s *stubQueryService) UpdateTutorProfile(ctx context.Context, req *dto.UpdateProfileRequest) error {
	return s.profileErr
}

func (s *stubQueryService) ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]dto.AcceptedQuery, error) {
	return s.accepted, nil
}

func (s *stubQueryService) ListResponsesForStudent(ctx context.Context, studentID int64) ([]dto.TutorResponse, error) {
	return s.responses, nil
}

func (s *stubQueryService) CanJoinSession(ctx context.Context, sessionID, userID int64) (bool, error) {
	return s.canJoin, nil
}

// newTestRouter wires the controller behind a fake identity middleware
func newTestRouter(service *stubQueryService, callerID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	controller := controllers.NewQueryController(service, zerolog.Nop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", callerID)
		c.Set("roleType", "TUTOR")
		c.Next()
	})

	router.POST("/queries/post", controller.PostQuery)
	router.GET("/queries/tutor/:tutorId", controller.GetPendingQueries)
	router.POST("/queries/accept", controller.AcceptQuery)
	router.POST("/queries/decline", controller.DeclineQuery)
	router.POST("/queries/session", controller.StartSession)
	router.POST("/queries/session/end", controller.EndSession)
	router.PUT("/queries/profile", controller.UpdateProfile)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostQueryEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		callerID   int64
		body       interface{}
		service    *stubQueryService
		wantStatus int
	}{
		{
			name:       "created",
			callerID:   1,
			body:       dto.PostQueryRequest{Subject: "Math", Subtopic: "Calculus", Query: "help", StudentID: 1},
			service:    &stubQueryService{postQueryID: 42},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed body",
			callerID:   1,
			body:       "not json",
			service:    &stubQueryService{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "posting for someone else is forbidden",
			callerID:   2,
			body:       dto.PostQueryRequest{Subject: "Math", Subtopic: "Calculus", Query: "help", StudentID: 1},
			service:    &stubQueryService{},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "validation failure from service",
			callerID:   1,
			body:       dto.PostQueryRequest{Subject: "Math", Subtopic: "x", Query: "y", StudentID: 1},
			service:    &stubQueryService{postErr: apperrors.NewValidationError("subject, subtopic and query are required")},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, tt.callerID)
			w := doJSON(t, router, http.MethodPost, "/queries/post", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestAcceptQueryEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		service    *stubQueryService
		wantStatus int
	}{
		{"accepted", &stubQueryService{}, http.StatusOK},
		{"race loser gets conflict", &stubQueryService{acceptErr: apperrors.ErrQueryNotAvailable}, http.StatusConflict},
		{"unknown query", &stubQueryService{acceptErr: apperrors.ErrQueryNotFound}, http.StatusNotFound},
		{"not a tutor", &stubQueryService{acceptErr: apperrors.ErrNotATutor}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, 5)
			w := doJSON(t, router, http.MethodPost, "/queries/accept", dto.AcceptQueryRequest{QueryID: 1, TutorID: 5})
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusConflict {
				var resp dto.APIResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if resp.Error == nil || resp.Error.Code != dto.ErrorCodeConflict {
					t.Errorf("error = %+v, want code %s", resp.Error, dto.ErrorCodeConflict)
				}
			}
		})
	}
}

func TestStartSessionEndpoint(t *testing.T) {
	t.Run("new session", func(t *testing.T) {
		router := newTestRouter(&stubQueryService{startID: 7}, 5)
		w := doJSON(t, router, http.MethodPost, "/queries/session", dto.StartSessionRequest{QueryID: 1, TutorID: 5, StudentID: 2})
		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
	})

	t.Run("existing session", func(t *testing.T) {
		router := newTestRouter(&stubQueryService{startID: 7, startExists: true}, 5)
		w := doJSON(t, router, http.MethodPost, "/queries/session", dto.StartSessionRequest{QueryID: 1, TutorID: 5, StudentID: 2})
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data dto.StartSessionResponse `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !resp.Data.Existing || resp.Data.SessionID != 7 {
			t.Errorf("data = %+v", resp.Data)
		}
	})

	t.Run("neither party is forbidden", func(t *testing.T) {
		router := newTestRouter(&stubQueryService{startID: 7}, 99)
		w := doJSON(t, router, http.MethodPost, "/queries/session", dto.StartSessionRequest{QueryID: 1, TutorID: 5, StudentID: 2})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403: %s", w.Code, w.Body.String())
		}
	})
}

func TestUpdateProfileEndpoint(t *testing.T) {
	t.Run("negative rate maps to 400", func(t *testing.T) {
		service := &stubQueryService{profileErr: apperrors.NewCustomError(apperrors.ErrInvalidRate, "ratePer10Min must not be negative")}
		router := newTestRouter(service, 5)
		rate := -5.0
		w := doJSON(t, router, http.MethodPut, "/queries/profile", dto.UpdateProfileRequest{UserID: 5, RatePer10Min: &rate})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
		}
	})

	t.Run("success", func(t *testing.T) {
		router := newTestRouter(&stubQueryService{}, 5)
		w := doJSON(t, router, http.MethodPut, "/queries/profile", dto.UpdateProfileRequest{UserID: 5, Bio: "hi"})
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
	})
}

func TestGetPendingQueriesEndpoint(t *testing.T) {
	t.Run("bad path parameter", func(t *testing.T) {
		router := newTestRouter(&stubQueryService{}, 5)
		w := doJSON(t, router, http.MethodGet, "/queries/tutor/abc", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns feed", func(t *testing.T) {
		service := &stubQueryService{pending: []dto.QuerySummary{{ID: 1, Subject: "Math"}}}
		router := newTestRouter(service, 5)
		w := doJSON(t, router, http.MethodGet, "/queries/tutor/5", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data []dto.QuerySummary `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Data) != 1 || resp.Data[0].Subject != "Math" {
			t.Errorf("data = %+v", resp.Data)
		}
	})
}
