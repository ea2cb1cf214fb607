package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

// DaySchedule is the bell-schedule view of one calendar date.
type DaySchedule struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	MaxPeriod int    `json:"max_period"`
}

// WeekWindow is one academic week with its resolved date bounds.
type WeekWindow struct {
	Term      int    `json:"term"`
	Week      int    `json:"week"`
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`
}

// CalendarService answers bell-schedule and term-week questions. It is
// a pure read over the configured academic calendar, no storage behind
// it.
type CalendarService struct {
	calendar *models.AcademicCalendar
	logger   *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(calendar *models.AcademicCalendar, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{calendar: calendar, logger: logger}
}

// DaySchedule resolves the period count for a date.
func (s *CalendarService) DaySchedule(rawDate string) (*DaySchedule, error) {
	date, err := time.ParseInLocation(DateLayout, rawDate, s.calendar.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}
	return &DaySchedule{
		Date:      date.Format(DateLayout),
		Weekday:   date.Weekday().String(),
		MaxPeriod: s.calendar.MaxPeriod(date),
	}, nil
}

// Week resolves one (term, week) address to its date bounds.
func (s *CalendarService) Week(term, week int) (*WeekWindow, error) {
	start, end, err := s.calendar.WeekBounds(term, week, time.Now().In(s.calendar.Location))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term or week")
	}
	return &WeekWindow{
		Term:      term,
		Week:      week,
		WeekStart: start.Format(DateLayout),
		WeekEnd:   end.Format(DateLayout),
	}, nil
}

// TermWeeks lists every week of a term with resolved bounds.
func (s *CalendarService) TermWeeks(term int) ([]WeekWindow, error) {
	now := time.Now().In(s.calendar.Location)
	weeks := make([]WeekWindow, 0, s.calendar.WeeksPerTerm)
	for week := 1; week <= s.calendar.WeeksPerTerm; week++ {
		start, end, err := s.calendar.WeekBounds(term, week, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
		}
		weeks = append(weeks, WeekWindow{
			Term:      term,
			Week:      week,
			WeekStart: start.Format(DateLayout),
			WeekEnd:   end.Format(DateLayout),
		})
	}
	return weeks, nil
}
