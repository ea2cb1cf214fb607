package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-agenda-api/internal/service"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
	"github.com/noah-isme/sma-agenda-api/pkg/response"
)

// CalendarHandler exposes bell-schedule and term-week lookups.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// DaySchedule godoc
// @Summary Bell schedule for a date
// @Tags Calendar
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/day [get]
func (h *CalendarHandler) DaySchedule(c *gin.Context) {
	schedule, err := h.service.DaySchedule(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Week godoc
// @Summary Resolve a term/week to date bounds
// @Tags Calendar
// @Produce json
// @Param term query int true "Term (1-3)"
// @Param week query int true "Week (1-15)"
// @Success 200 {object} response.Envelope
// @Router /calendar/week [get]
func (h *CalendarHandler) Week(c *gin.Context) {
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

	window, err := h.service.Week(term, week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// TermWeek godoc
// @Summary Date bounds for one week of a term
// @Tags Calendar
// @Produce json
// @Param term path int true "Term (1-3)"
// @Param week path int true "Week (1-15)"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{term}/weeks/{week} [get]
func (h *CalendarHandler) TermWeek(c *gin.Context) {
	term, err := strconv.Atoi(c.Param("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term must be a number"))
		return
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a number"))
		return
	}

	window, err := h.service.Week(term, week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// TermWeeks godoc
// @Summary List all weeks of a term
// @Tags Calendar
// @Produce json
// @Param term path int true "Term (1-3)"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{term}/weeks [get]
func (h *CalendarHandler) TermWeeks(c *gin.Context) {
	term, err := strconv.Atoi(c.Param("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term must be a number"))
		return
	}

	weeks, err := h.service.TermWeeks(term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weeks, nil)
}
