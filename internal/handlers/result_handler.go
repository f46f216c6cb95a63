package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
}

func NewResultHandler(resultService services.ResultService, logger utils.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
	}
}

// ListResults lists persisted results for HR review
// @Summary List results
// @Tags results
// @Produce json
// @Param application_id query string false "Application ID"
// @Param min_score query number false "Minimum score (0-100)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} SuccessResponse
// @Router /results [get]
func (h *ResultHandler) ListResults(c *gin.Context) {
	filters := parseResultFilters(c)

	results, total, err := h.resultService.ListResults(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Results retrieved", gin.H{
		"results": results,
		"total":   total,
		"limit":   filters.Limit,
		"offset":  filters.Offset,
	})
}

// GetResult returns the latest result of an application with its answer logs
// @Summary Get result
// @Tags results
// @Produce json
// @Param application_id path string true "Application ID"
// @Success 200 {object} models.TestResult
// @Failure 404 {object} ErrorResponse
// @Router /results/{application_id} [get]
func (h *ResultHandler) GetResult(c *gin.Context) {
	applicationID := ParseStringIDParam(c, "application_id")
	if applicationID == "" {
		return
	}

	result, err := h.resultService.GetResult(c.Request.Context(), applicationID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportResults downloads the filtered results as an Excel workbook
// @Summary Export results
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /results/export [get]
func (h *ResultHandler) ExportResults(c *gin.Context) {
	data, err := h.resultService.ExportResultsToExcel(c.Request.Context(), parseResultFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assessment-results-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
