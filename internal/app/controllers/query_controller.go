package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/app/services"
	"github.com/microtutor/backend/internal/middleware"
	"github.com/microtutor/backend/internal/pkg/apperrors"
)

// QueryController handles the query lifecycle endpoints
type QueryController struct {
	queryService services.QueryService
	logger       zerolog.Logger
}

// NewQueryController creates a new QueryController
func NewQueryController(queryService services.QueryService, logger zerolog.Logger) *QueryController {
	return &QueryController{
		queryService: queryService,
		logger:       logger,
	}
}

// PostQuery creates a pending query
// @Summary Post a tutoring query
// @Description Creates a pending query and notifies connected tutors
// @Tags queries
// @Accept json
// @Produce json
// @Param request body dto.PostQueryRequest true "Query payload"
// @Success 201 {object} dto.APIResponse{data=dto.PostQueryResponse}
// @Failure 400 {object} dto.ErrorResponse "Missing or blank fields"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Security BearerAuth
// @Router /queries/post [post]
func (c *QueryController) PostQuery(ctx *gin.Context) {
	var req dto.PostQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.StudentID) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	queryID, err := c.queryService.PostQuery(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.PostQueryResponse{
		Message: "Query posted successfully",
		QueryID: queryID,
	}))
}

// GetPendingQueries returns a tutor's pending feed
// @Summary List pending queries for a tutor
// @Description Pending queries matching the tutor's specialties, excluding declined ones, newest first
// @Tags queries
// @Produce json
// @Param tutorId path int true "Tutor ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.QuerySummary}
// @Failure 404 {object} dto.ErrorResponse "Tutor not found"
// @Security BearerAuth
// @Router /queries/tutor/{tutorId} [get]
func (c *QueryController) GetPendingQueries(ctx *gin.Context) {
	tutorID, ok := pathID(ctx, "tutorId")
	if !ok {
		return
	}

	queries, err := c.queryService.ListPendingForTutor(ctx.Request.Context(), tutorID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(queries))
}

// AcceptQuery lets a tutor accept a pending query
// @Summary Accept a query
// @Description Atomically assigns a pending query to the tutor. Of two racing accepts one gets 409.
// @Tags queries
// @Accept json
// @Produce json
// @Param request body dto.AcceptQueryRequest true "Accept payload"
// @Success 200 {object} dto.APIResponse{data=dto.MessageResponse}
// @Failure 404 {object} dto.ErrorResponse "Query or tutor not found"
// @Failure 409 {object} dto.ErrorResponse "Query is no longer available"
// @Security BearerAuth
// @Router /queries/accept [post]
func (c *QueryController) AcceptQuery(ctx *gin.Context) {
	var req dto.AcceptQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.TutorID) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	if err := c.queryService.AcceptQuery(ctx.Request.Context(), req.QueryID, req.TutorID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MessageResponse{
		Message: "Query accepted successfully",
	}))
}

// DeclineQuery hides a pending query from the tutor's feed
// @Summary Decline a query
// @Description Records a decline; the query stays available to other tutors
// @Tags queries
// @Accept json
// @Produce json
// @Param request body dto.DeclineQueryRequest true "Decline payload"
// @Success 200 {object} dto.APIResponse{data=dto.MessageResponse}
// @Failure 404 {object} dto.ErrorResponse "Query or tutor not found"
// @Security BearerAuth
// @Router /queries/decline [post]
func (c *QueryController) DeclineQuery(ctx *gin.Context) {
	var req dto.DeclineQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.TutorID) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	if err := c.queryService.DeclineQuery(ctx.Request.Context(), req.QueryID, req.TutorID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MessageResponse{
		Message: "Query declined",
	}))
}

// StartSession starts (or resumes) the session for an accepted query
// @Summary Start a session
// @Description Creates an active session for the query, or returns the existing active one
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.StartSessionRequest true "Start payload"
// @Success 201 {object} dto.APIResponse{data=dto.StartSessionResponse}
// @Failure 404 {object} dto.ErrorResponse "Query not found"
// @Security BearerAuth
// @Router /queries/session [post]
func (c *QueryController) StartSession(ctx *gin.Context) {
	var req dto.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.TutorID) && !callerIs(ctx, req.StudentID) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	sessionID, existing, err := c.queryService.StartSession(ctx.Request.Context(), req.QueryID, req.TutorID, req.StudentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	message := "Session created successfully"
	status := http.StatusCreated
	if existing {
		message = "Session already active"
		status = http.StatusOK
	}

	ctx.JSON(status, dto.NewSuccessResponse(dto.StartSessionResponse{
		Message:   message,
		SessionID: sessionID,
		Existing:  existing,
	}))
}

// EndSession ends a session and completes its query
// @Summary End a session
// @Description Ends the session and marks the query completed. Ending an ended session is a no-op.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.EndSessionRequest true "End payload"
// @Success 200 {object} dto.APIResponse{data=dto.MessageResponse}
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /queries/session/end [post]
func (c *QueryController) EndSession(ctx *gin.Context) {
	var req dto.EndSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.EndedBy) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	if err := c.queryService.EndSession(ctx.Request.Context(), req.SessionID, req.EndedBy); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MessageResponse{
		Message: "Session ended",
	}))
}

// UpdateProfile updates a tutor's profile
// @Summary Update tutor profile
// @Tags tutors
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} dto.APIResponse{data=dto.MessageResponse}
// @Failure 400 {object} dto.ErrorResponse "Negative rate"
// @Failure 404 {object} dto.ErrorResponse "Tutor not found"
// @Security BearerAuth
// @Router /queries/profile [put]
func (c *QueryController) UpdateProfile(ctx *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if !callerIs(ctx, req.UserID) {
		middleware.HandleAPIError(ctx, apperrors.ErrPermissionDenied)
		return
	}

	if err := c.queryService.UpdateTutorProfile(ctx.Request.Context(), &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MessageResponse{
		Message: "Profile updated successfully",
	}))
}

// GetAcceptedQueries returns a tutor's accepted queries
// @Summary List accepted queries for a tutor
// @Tags queries
// @Produce json
// @Param tutorId path int true "Tutor ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.AcceptedQuery}
// @Failure 404 {object} dto.ErrorResponse "Tutor not found"
// @Security BearerAuth
// @Router /queries/tutor/{tutorId}/accepted-queries [get]
func (c *QueryController) GetAcceptedQueries(ctx *gin.Context) {
	tutorID, ok := pathID(ctx, "tutorId")
	if !ok {
		return
	}

	queries, err := c.queryService.ListAcceptedForTutor(ctx.Request.Context(), tutorID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(queries))
}

// GetTutorResponses returns a student's queries with accepting-tutor details
// @Summary List tutor responses for a student
// @Tags queries
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.TutorResponse}
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Security BearerAuth
// @Router /queries/student/{studentId}/responses [get]
func (c *QueryController) GetTutorResponses(ctx *gin.Context) {
	studentID, ok := pathID(ctx, "studentId")
	if !ok {
		return
	}

	responses, err := c.queryService.ListResponsesForStudent(ctx.Request.Context(), studentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(responses))
}

// callerIs reports whether the authenticated user matches the given id
func callerIs(ctx *gin.Context, userID int64) bool {
	return ctx.GetInt64("userID") == userID
}

// pathID parses an int64 path parameter, writing a 400 on failure
func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+name).WithField(name)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}
