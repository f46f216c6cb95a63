package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides request scoped logging and error mapping
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	logger := utils.GetLoggerFromContext(c, h.logger)
	if userID, exists := c.Get("user_id"); exists {
		logger = logger.With("user_id", userID)
	}
	return logger
}

// LogRequest logs an incoming operation with extra fields
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"remote_addr", c.ClientIP()}, additionalFields...)
	h.requestLogger(c).Debug(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.requestLogger(c).LogError(err, message, additionalFields...)
}

func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.requestLogger(c).Warn(message, additionalFields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, err error, details ...interface{}) {
	resp := ErrorResponse{
		Message: message,
		Code:    code,
	}
	if len(details) > 0 {
		resp.Details = details[0]
	}

	switch {
	case statusCode >= http.StatusInternalServerError:
		h.LogError(c, err, message, "status_code", statusCode)
	case err != nil:
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.AbortWithStatusJSON(statusCode, resp)
}

// RespondWithSuccess wraps data in a SuccessResponse
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// handleServiceError maps service and proctoring errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err, validationErrors)
		return
	}
	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		h.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationError.Message, err, validationError)
		return
	}

	var generationError *services.GenerationError
	if errors.As(err, &generationError) {
		h.RespondWithError(c, http.StatusBadGateway, "QUESTION_GENERATION_FAILED",
			"Could not generate questions for this role", err,
			map[string]interface{}{"rejected_candidates": generationError.Rejected})
		return
	}

	var resourceError *proctoring.ResourceError
	if errors.As(err, &resourceError) {
		h.RespondWithError(c, http.StatusServiceUnavailable, "CAMERA_UNAVAILABLE",
			"Camera is not available", err,
			map[string]interface{}{"resource": resourceError.Resource, "reason": resourceError.Error()})
		return
	}

	var persistenceError *services.PersistenceError
	if errors.As(err, &persistenceError) {
		h.RespondWithError(c, http.StatusInternalServerError, "RESULT_NOT_SAVED",
			"Result could not be saved, submit again to retry", err,
			map[string]interface{}{"retryable": true})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	case errors.Is(err, services.ErrResultNotFound):
		h.RespondWithError(c, http.StatusNotFound, "RESULT_NOT_FOUND", "Test result not found", nil)
	case errors.Is(err, services.ErrSessionTimeExpired):
		h.RespondWithError(c, http.StatusConflict, "SESSION_EXPIRED", "Time is up for this session", err)
	case errors.Is(err, services.ErrFinalizeInProgress):
		h.RespondWithError(c, http.StatusConflict, "FINALIZE_IN_PROGRESS", "Session is being submitted", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "SESSION_STATE_CONFLICT", err.Error(), err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}
