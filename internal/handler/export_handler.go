package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/internal/service"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
	"github.com/noah-isme/sma-agenda-api/pkg/response"
)

// ExportHandler exposes agenda export generation and download.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// WeekAgenda godoc
// @Summary Export a class's weekly agenda
// @Tags Exports
// @Produce json
// @Param class_id query string true "Class ID"
// @Param term query int true "Term (1-3)"
// @Param week query int true "Week (1-15)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/agenda [post]
func (h *ExportHandler) WeekAgenda(c *gin.Context) {
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	term, err := strconv.Atoi(c.Query("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term must be a number"))
		return
	}
	week, err := strconv.Atoi(c.Query("week"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a number"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))

	result, err := h.service.GenerateWeekAgenda(c.Request.Context(), classID, term, week, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Entries godoc
// @Summary Export plan entries for a term/week
// @Tags Exports
// @Produce json
// @Param kind query string true "SUMMARY or SUPPORT"
// @Param term query int true "Term (1-3)"
// @Param week query int true "Week (1-15)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/entries [post]
func (h *ExportHandler) Entries(c *gin.Context) {
	kind := models.EntryKind(strings.ToUpper(c.Query("kind")))
	if kind != models.EntryKindSummary && kind != models.EntryKindSupport {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind must be SUMMARY or SUPPORT"))
		return
	}
	term, err := strconv.Atoi(c.Query("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term must be a number"))
		return
	}
	week, err := strconv.Atoi(c.Query("week"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a number"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))

	result, err := h.service.GenerateEntryReport(c.Request.Context(), kind, term, week, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a generated export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	_, relPath, _, err := h.service.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	mime := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		mime = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, stat.Size(), mime, file, nil)
}
