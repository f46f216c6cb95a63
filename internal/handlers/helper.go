package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"github.com/gin-gonic/gin"
)

// ParseStringIDParam returns the trimmed path parameter, or writes a 400 and
// returns "" when it is empty.
func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
			Code:    "INVALID_PARAMETER",
		})
		return ""
	}
	return idStr
}

// ParseIntParam parses a non-negative integer path parameter. ok is false
// after a 400 was written.
func ParseIntParam(c *gin.Context, param string) (int, bool) {
	value, err := strconv.Atoi(c.Param(param))
	if err != nil || value < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a non-negative integer",
			Code:    "INVALID_PARAMETER",
		})
		return 0, false
	}
	return value, true
}

// parseResultFilters reads list filters from the query string. Malformed
// values are ignored.
func parseResultFilters(c *gin.Context) repositories.TestResultFilters {
	filters := repositories.TestResultFilters{
		SortBy:    c.DefaultQuery("sort_by", "completed_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if appID := strings.TrimSpace(c.Query("application_id")); appID != "" {
		filters.ApplicationID = &appID
	}
	if v, err := strconv.ParseFloat(c.Query("min_score"), 64); err == nil {
		filters.MinScore = &v
	}
	if v, err := time.Parse(time.RFC3339, c.Query("date_from")); err == nil {
		filters.DateFrom = &v
	}
	if v, err := time.Parse(time.RFC3339, c.Query("date_to")); err == nil {
		filters.DateTo = &v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		filters.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		filters.Offset = v
	}

	return filters
}
