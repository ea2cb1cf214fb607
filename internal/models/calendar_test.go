package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/pkg/config"
)

func testCalendarConfig() config.CalendarConfig {
	return config.CalendarConfig{
		Timezone:        "Asia/Jakarta",
		ShortWeekday:    "FRIDAY",
		ShortDayPeriods: 4,
		FullDayPeriods:  8,
		TermOneAnchor:   7,
		TermTwoAnchor:   11,
		TermThreeAnchor: 3,
		WeeksPerTerm:    15,
	}
}

func newTestCalendar(t *testing.T) *AcademicCalendar {
	t.Helper()
	cal, err := NewAcademicCalendar(testCalendarConfig())
	require.NoError(t, err)
	return cal
}

func TestAcademicCalendarMaxPeriod(t *testing.T) {
	cal := newTestCalendar(t)

	friday := time.Date(2026, time.August, 28, 8, 0, 0, 0, cal.Location)
	wednesday := time.Date(2026, time.August, 26, 8, 0, 0, 0, cal.Location)

	assert.Equal(t, 4, cal.MaxPeriod(friday))
	assert.Equal(t, 8, cal.MaxPeriod(wednesday))
}

func TestAcademicCalendarIsValidPeriod(t *testing.T) {
	cal := newTestCalendar(t)

	friday := time.Date(2026, time.August, 28, 8, 0, 0, 0, cal.Location)
	wednesday := time.Date(2026, time.August, 26, 8, 0, 0, 0, cal.Location)

	assert.False(t, cal.IsValidPeriod(wednesday, 0))
	assert.False(t, cal.IsValidPeriod(wednesday, -1))
	assert.True(t, cal.IsValidPeriod(wednesday, 5))
	assert.True(t, cal.IsValidPeriod(wednesday, 8))
	assert.False(t, cal.IsValidPeriod(wednesday, 9))
	assert.True(t, cal.IsValidPeriod(friday, 4))
	assert.False(t, cal.IsValidPeriod(friday, 5))
}

func TestAcademicCalendarWeekBounds(t *testing.T) {
	cal := newTestCalendar(t)

	// Reference time after the term-1 anchor: academic year starts this
	// calendar year.
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, cal.Location)

	start, end, err := cal.WeekBounds(1, 3, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.July, 15, 0, 0, 0, 0, cal.Location), start)
	assert.Equal(t, time.Date(2026, time.July, 21, 0, 0, 0, 0, cal.Location), end)

	// Term 3 is anchored before the term-1 month, so it falls in the
	// following calendar year.
	start, end, err = cal.WeekBounds(3, 1, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, time.March, 1, 0, 0, 0, 0, cal.Location), start)
	assert.Equal(t, time.Date(2027, time.March, 7, 0, 0, 0, 0, cal.Location), end)
}

func TestAcademicCalendarWeekBoundsBeforeAnchor(t *testing.T) {
	cal := newTestCalendar(t)

	// Reference time before the term-1 anchor: the academic year started
	// the previous calendar year.
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, cal.Location)

	start, _, err := cal.WeekBounds(1, 1, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, cal.Location), start)

	start, _, err = cal.WeekBounds(3, 2, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 8, 0, 0, 0, 0, cal.Location), start)
}

func TestAcademicCalendarWeekBoundsValidation(t *testing.T) {
	cal := newTestCalendar(t)
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, cal.Location)

	_, _, err := cal.WeekBounds(4, 1, now)
	assert.Error(t, err)

	_, _, err = cal.WeekBounds(1, 0, now)
	assert.Error(t, err)

	_, _, err = cal.WeekBounds(1, 16, now)
	assert.Error(t, err)
}

func TestNewAcademicCalendarRejectsBadInput(t *testing.T) {
	cfg := testCalendarConfig()
	cfg.Timezone = "Not/AZone"
	_, err := NewAcademicCalendar(cfg)
	assert.Error(t, err)

	cfg = testCalendarConfig()
	cfg.ShortWeekday = "SOMEDAY"
	_, err = NewAcademicCalendar(cfg)
	assert.Error(t, err)

	cfg = testCalendarConfig()
	cfg.TermTwoAnchor = 13
	_, err = NewAcademicCalendar(cfg)
	assert.Error(t, err)
}
