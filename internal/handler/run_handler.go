package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rahmanfadhil/deadline-radar/internal/dto"
	"github.com/rahmanfadhil/deadline-radar/internal/models"
	"github.com/rahmanfadhil/deadline-radar/internal/service"
	appErrors "github.com/rahmanfadhil/deadline-radar/pkg/errors"
	"github.com/rahmanfadhil/deadline-radar/pkg/response"
)

type runService interface {
	Create(ctx context.Context, token string, req dto.CreateRunRequest) (*dto.RunResponse, error)
	Get(ctx context.Context, id string) (*models.SyncRun, error)
	List(ctx context.Context, limit int) ([]models.SyncRun, error)
	Schedule(ctx context.Context, id string) (*models.WeekSchedule, error)
	Export(ctx context.Context, id, format string) (*service.ScheduleExport, error)
}

// RunHandler exposes the sync-run endpoints.
type RunHandler struct {
	runs runService
}

// NewRunHandler constructs RunHandler.
func NewRunHandler(runs runService) *RunHandler {
	return &RunHandler{runs: runs}
}

// Create godoc
// @Summary Start a deadline sync run
// @Tags Runs
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer LMS access token"
// @Param payload body dto.CreateRunRequest false "Run options"
// @Success 202 {object} response.Envelope
// @Router /runs [post]
func (h *RunHandler) Create(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	run, err := h.runs.Create(c.Request.Context(), bearerToken(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// Get godoc
// @Summary Run status and progress
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// List godoc
// @Summary Recent run history
// @Tags Runs
// @Produce json
// @Param limit query int false "Max rows, capped by the configured history window"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *RunHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs)
}

// Schedule godoc
// @Summary Week schedule of a finished run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id}/schedule [get]
func (h *RunHandler) Schedule(c *gin.Context) {
	schedule, err := h.runs.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule)
}

// Export godoc
// @Summary Download a finished schedule as CSV or PDF
// @Tags Runs
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /runs/{id}/export [get]
func (h *RunHandler) Export(c *gin.Context) {
	result, err := h.runs.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
