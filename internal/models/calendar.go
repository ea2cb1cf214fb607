package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-agenda-api/pkg/config"
)

// AcademicCalendar holds the bell-schedule grid and term anchors used
// for period and week-bound computations. The timezone is carried
// explicitly so date math never depends on the process locale.
type AcademicCalendar struct {
	Location        *time.Location
	ShortWeekday    time.Weekday
	ShortDayPeriods int
	FullDayPeriods  int
	TermAnchors     map[int]time.Month
	WeeksPerTerm    int
}

// NewAcademicCalendar builds a calendar from configuration.
func NewAcademicCalendar(cfg config.CalendarConfig) (*AcademicCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load calendar timezone %q: %w", cfg.Timezone, err)
	}

	weekday, err := parseWeekday(cfg.ShortWeekday)
	if err != nil {
		return nil, err
	}

	cal := &AcademicCalendar{
		Location:        loc,
		ShortWeekday:    weekday,
		ShortDayPeriods: cfg.ShortDayPeriods,
		FullDayPeriods:  cfg.FullDayPeriods,
		TermAnchors: map[int]time.Month{
			1: time.Month(cfg.TermOneAnchor),
			2: time.Month(cfg.TermTwoAnchor),
			3: time.Month(cfg.TermThreeAnchor),
		},
		WeeksPerTerm: cfg.WeeksPerTerm,
	}
	if cal.ShortDayPeriods <= 0 {
		cal.ShortDayPeriods = 4
	}
	if cal.FullDayPeriods <= 0 {
		cal.FullDayPeriods = 8
	}
	if cal.WeeksPerTerm <= 0 {
		cal.WeeksPerTerm = 15
	}
	for term, month := range cal.TermAnchors {
		if month < time.January || month > time.December {
			return nil, fmt.Errorf("invalid anchor month %d for term %d", month, term)
		}
	}
	return cal, nil
}

// MaxPeriod returns the number of periods taught on the given date.
func (c *AcademicCalendar) MaxPeriod(date time.Time) int {
	if date.In(c.Location).Weekday() == c.ShortWeekday {
		return c.ShortDayPeriods
	}
	return c.FullDayPeriods
}

// IsValidPeriod reports whether the period exists on the given date.
func (c *AcademicCalendar) IsValidPeriod(date time.Time, period int) bool {
	if period <= 0 {
		return false
	}
	return period <= c.MaxPeriod(date)
}

// WeekBounds derives the start and end dates of an academic week. The
// academic year rolls over when the reference time is before the term-1
// anchor month; terms anchored earlier in the calendar year than term 1
// belong to the following calendar year. Week N spans
// anchor + (N-1)*7 days through the sixth day after.
func (c *AcademicCalendar) WeekBounds(term, week int, now time.Time) (time.Time, time.Time, error) {
	anchorMonth, ok := c.TermAnchors[term]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("unknown term %d", term)
	}
	if week < 1 || week > c.WeeksPerTerm {
		return time.Time{}, time.Time{}, fmt.Errorf("week %d out of range 1..%d", week, c.WeeksPerTerm)
	}

	local := now.In(c.Location)
	startYear := local.Year()
	if local.Month() < c.TermAnchors[1] {
		startYear--
	}
	anchorYear := startYear
	if anchorMonth < c.TermAnchors[1] {
		anchorYear++
	}

	anchor := time.Date(anchorYear, anchorMonth, 1, 0, 0, 0, 0, c.Location)
	start := anchor.AddDate(0, 0, (week-1)*7)
	end := start.AddDate(0, 0, 6)
	return start, end, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUNDAY":
		return time.Sunday, nil
	case "MONDAY":
		return time.Monday, nil
	case "TUESDAY":
		return time.Tuesday, nil
	case "WEDNESDAY":
		return time.Wednesday, nil
	case "THURSDAY":
		return time.Thursday, nil
	case "FRIDAY":
		return time.Friday, nil
	case "SATURDAY":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("unknown weekday %q", raw)
	}
}
