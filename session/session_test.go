package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	assert.NoError(t, err)
	return loc
}

func TestSessionDateBeforeCutover(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	ref := time.Date(2024, 6, 5, 14, 59, 0, 0, ny)

	got := SessionDate(ref, 15)
	assert.Equal(t, time.Date(2024, 6, 5, 0, 0, 0, 0, ny), got)
}

func TestSessionDateAtCutover(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	ref := time.Date(2024, 6, 5, 15, 0, 0, 0, ny)

	got := SessionDate(ref, 15)
	assert.Equal(t, time.Date(2024, 6, 6, 0, 0, 0, 0, ny), got)
}

func TestSessionDateSundayEveningIsMonday(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	// Sunday 16:00 with a 15:00 cutover belongs to Monday's session.
	ref := time.Date(2024, 6, 2, 16, 0, 0, 0, ny)
	assert.Equal(t, time.Sunday, ref.Weekday())

	got := SessionDate(ref, 15)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, ny), got)
	assert.Equal(t, time.Monday, got.Weekday())
}

func TestSessionDateFridayAfterCutoverIsSaturday(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	// The calculator does not know about trading calendars; a Saturday
	// session date is a valid output.
	ref := time.Date(2024, 6, 7, 15, 30, 0, 0, ny)
	assert.Equal(t, time.Friday, ref.Weekday())

	got := SessionDate(ref, 15)
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, ny), got)
	assert.Equal(t, time.Saturday, got.Weekday())
}

func TestSessionDateMonotonicAcrossCutover(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	before := SessionDate(time.Date(2024, 6, 5, 16, 59, 59, 0, ny), 17)
	after := SessionDate(time.Date(2024, 6, 5, 17, 0, 0, 0, ny), 17)

	assert.Equal(t, before.AddDate(0, 0, 1), after)
}

func TestSessionDateDSTSpringForward(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	// 2024-03-10 is the US spring-forward day; the calendar date still
	// advances by exactly one day across the cutover.
	assert.Equal(t,
		time.Date(2024, 3, 10, 0, 0, 0, 0, ny),
		SessionDate(time.Date(2024, 3, 10, 16, 30, 0, 0, ny), 17))
	assert.Equal(t,
		time.Date(2024, 3, 11, 0, 0, 0, 0, ny),
		SessionDate(time.Date(2024, 3, 10, 17, 30, 0, 0, ny), 17))
}

func TestSessionDateDSTFallBack(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	// 2024-11-03 is the US fall-back day.
	assert.Equal(t,
		time.Date(2024, 11, 4, 0, 0, 0, 0, ny),
		SessionDate(time.Date(2024, 11, 3, 18, 0, 0, 0, ny), 17))
}

func TestSessionDateLeapDay(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	got := SessionDate(time.Date(2024, 2, 28, 18, 0, 0, 0, ny), 17)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, ny), got)
}

func TestSessionDateIdempotent(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	ref := time.Date(2024, 6, 5, 19, 15, 0, 0, ny)

	first := SessionDate(ref, 17)
	second := SessionDate(ref, 17)
	assert.Equal(t, first, second)
}

func TestClockConvertsServerTime(t *testing.T) {
	t.Parallel()

	// 03:30 UTC on June 5 is 22:30 the previous evening in Chicago, which
	// is past a 17:00 cutover and therefore June 5's session.
	c := NewClock("America/Chicago", true, 17)
	server := time.Date(2024, 6, 5, 3, 30, 0, 0, time.UTC)

	got := c.SessionDateOf(server)
	assert.Equal(t, "2024-06-05", got.Format("2006-01-02"))
}

func TestClockFallsBackOnBadTimezone(t *testing.T) {
	t.Parallel()

	c := NewClock("Not/AZone", true, 17)
	assert.Equal(t, time.Local, c.Location())

	// Server time is treated as if it were already exchange time.
	server := time.Date(2024, 6, 5, 18, 0, 0, 0, time.Local)
	got := c.SessionDateOf(server)
	assert.Equal(t, "2024-06-06", got.Format("2006-01-02"))
}

func TestClockCutoverDisabled(t *testing.T) {
	t.Parallel()

	c := NewClock("UTC", false, 17)
	server := time.Date(2024, 6, 5, 23, 30, 0, 0, time.UTC)

	got := c.SessionDateOf(server)
	assert.Equal(t, "2024-06-05", got.Format("2006-01-02"))
}
