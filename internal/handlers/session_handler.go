package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// DefaultMaxFrameBytes caps a single uploaded webcam frame.
const DefaultMaxFrameBytes = 4 << 20

// FrameSink receives uploaded webcam frames for a session.
type FrameSink interface {
	Publish(handle string, r io.Reader) error
}

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	frames         FrameSink
	validator      *validator.Validator
	maxFrameBytes  int64
}

type StartSessionRequest struct {
	ApplicationID  string `json:"application_id" validate:"required,not_blank,max=100"`
	JobDescription string `json:"job_description" validate:"required,not_blank"`
}

type SelectAnswerRequest struct {
	Option *int `json:"option" validate:"required"`
}

// NewSessionHandler wires the session routes. frames may be nil when webcam
// uploads are not accepted.
func NewSessionHandler(
	sessionService services.SessionService,
	frames FrameSink,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		frames:         frames,
		validator:      validator,
		maxFrameBytes:  DefaultMaxFrameBytes,
	}
}

// StartSession builds the question set, acquires the camera and starts the clock
// @Summary Start test session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body StartSessionRequest true "Application and role"
// @Success 201 {object} services.StartedSession
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid request payload", err, err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Starting session", "application_id", req.ApplicationID)

	started, err := h.sessionService.Start(c.Request.Context(), req.ApplicationID, req.JobDescription)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, started)
}

// GetSession returns the session snapshot
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	snapshot, err := h.sessionService.Snapshot(id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Tick advances the countdown and runs one proctoring pass. The snapshot
// carries the outcome once the time budget auto-submitted the attempt.
// @Summary Tick session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionSnapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/tick [post]
func (h *SessionHandler) Tick(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	snapshot, err := h.sessionService.Tick(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SelectAnswer records the chosen option for a question
// @Summary Select answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Param answer body SelectAnswerRequest true "Chosen option"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{index} [put]
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	index, ok := ParseIntParam(c, "index")
	if !ok {
		return
	}

	var req SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid request payload", err, err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	snapshot, err := h.sessionService.SelectAnswer(id, index, *req.Option)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Next moves to the following question
// @Summary Next question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/next [post]
func (h *SessionHandler) Next(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	snapshot, err := h.sessionService.Next(id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Previous moves to the preceding question
// @Summary Previous question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/previous [post]
func (h *SessionHandler) Previous(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	snapshot, err := h.sessionService.Previous(id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Submit scores and persists the attempt
// @Summary Submit session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.TestOutcome
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	outcome, err := h.sessionService.Submit(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Abort abandons the session without saving a result
// @Summary Abort session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Abort(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.sessionService.Abort(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PushFrame stores the latest webcam frame of a session. The body is the raw
// image (JPEG, PNG or WebP).
// @Summary Push webcam frame
// @Tags sessions
// @Accept image/jpeg,image/png,image/webp
// @Param id path string true "Session ID"
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/frames [post]
func (h *SessionHandler) PushFrame(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	if h.frames == nil {
		h.RespondWithError(c, http.StatusNotImplemented, "FRAMES_DISABLED", "Frame uploads are not enabled", nil)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFrameBytes)
	err := h.frames.Publish(id, body)
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, proctoring.ErrUnknownStream):
		h.RespondWithError(c, http.StatusNotFound, "STREAM_NOT_FOUND", "No active camera stream for this session", nil)
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.RespondWithError(c, http.StatusRequestEntityTooLarge, "FRAME_TOO_LARGE", "Frame exceeds the upload limit", err)
			return
		}
		h.RespondWithError(c, http.StatusBadRequest, "INVALID_FRAME", "Frame could not be decoded", err)
	}
}
