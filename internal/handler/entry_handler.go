package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/internal/service"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
	"github.com/noah-isme/sma-agenda-api/pkg/response"
)

// EntryHandler exposes plan-entry endpoints. One instance serves a
// single entry kind; the summaries and support-sessions route groups
// each get their own.
type EntryHandler struct {
	service *service.EntryService
	kind    models.EntryKind
}

// NewEntryHandler constructs an entry handler bound to a kind.
func NewEntryHandler(svc *service.EntryService, kind models.EntryKind) *EntryHandler {
	return &EntryHandler{service: svc, kind: kind}
}

// List godoc
// @Summary List plan entries
// @Tags Plan Entries
// @Produce json
// @Param term query int false "Term (1-3)"
// @Param week query int false "Week (1-15)"
// @Param class_id query string false "Filter by class"
// @Param teacher_id query string false "Filter by teacher"
// @Param status query string false "Filter by approval status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /summaries [get]
func (h *EntryHandler) List(c *gin.Context) {
	filter := models.EntryFilter{Kind: h.kind}
	if term, err := strconv.Atoi(c.Query("term")); err == nil {
		filter.Term = term
	}
	if week, err := strconv.Atoi(c.Query("week")); err == nil {
		filter.Week = week
	}
	filter.ClassID = c.Query("class_id")
	filter.SubjectID = c.Query("subject_id")
	filter.TeacherID = c.Query("teacher_id")
	filter.Status = models.ApprovalStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get plan entry
// @Tags Plan Entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /summaries/{id} [get]
func (h *EntryHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entry.Kind != h.kind {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "plan entry not found"))
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create plan entry
// @Tags Plan Entries
// @Accept json
// @Produce json
// @Param payload body service.CreateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /summaries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), h.kind, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update plan entry
// @Tags Plan Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.UpdateEntryRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /summaries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete plan entry
// @Tags Plan Entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204 {object} response.Envelope
// @Router /summaries/{id} [delete]
func (h *EntryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit own draft entry
// @Tags Plan Entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /summaries/{id}/submit [post]
func (h *EntryHandler) Submit(c *gin.Context) {
	entry, err := h.service.Submit(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Approve godoc
// @Summary Approve plan entry
// @Tags Plan Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.DecisionRequest false "Reviewer comments"
// @Success 200 {object} response.Envelope
// @Router /summaries/{id}/approve [post]
func (h *EntryHandler) Approve(c *gin.Context) {
	var req service.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	entry, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Reject godoc
// @Summary Reject plan entry
// @Tags Plan Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.DecisionRequest false "Reviewer comments"
// @Success 200 {object} response.Envelope
// @Router /summaries/{id}/reject [post]
func (h *EntryHandler) Reject(c *gin.Context) {
	var req service.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	entry, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
