package session

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qsor27/FuturesTradingLog-sub002/logging"
)

// Defaults for the exchange reference zone. Futures sessions roll at 17:00
// US Eastern, not at midnight.
const (
	DefaultTimezone    = "America/New_York"
	DefaultCutoverHour = 17
)

// SessionDate maps a reference-zone timestamp to its trading-session date:
// at or after the cutover hour the fill belongs to the next calendar day's
// session. The result is midnight in ref's location. Date arithmetic is
// calendar based, so DST transitions and leap days never shift the boundary.
func SessionDate(ref time.Time, cutoverHour int) time.Time {
	y, m, d := ref.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	if ref.Hour() >= cutoverHour {
		date = date.AddDate(0, 0, 1)
	}
	return date
}

// Clock resolves platform timestamps, which arrive in host/server local
// time, into session dates in the exchange reference zone.
type Clock struct {
	loc         *time.Location
	cutover     bool
	cutoverHour int
	log         *logrus.Entry

	now func() time.Time // test hook
}

// NewClock builds a clock for the named zone. An unresolvable zone must not
// take the process down: it is logged and server time is treated as if it
// were already exchange time.
func NewClock(tzName string, cutoverEnabled bool, cutoverHour int) *Clock {
	log := logging.Component("session")
	if tzName == "" {
		tzName = DefaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.WithError(err).Warnf("cannot load timezone %q, treating server time as exchange time", tzName)
		loc = time.Local
	}
	return &Clock{
		loc:         loc,
		cutover:     cutoverEnabled,
		cutoverHour: cutoverHour,
		log:         log,
		now:         time.Now,
	}
}

// Location returns the resolved reference zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// SessionDateOf converts a server-local timestamp to the reference zone and
// buckets it. With cutover mode off the bucket is the plain civil date.
func (c *Clock) SessionDateOf(serverTime time.Time) time.Time {
	ref := serverTime.In(c.loc)
	hour := c.cutoverHour
	if !c.cutover {
		hour = 24
	}
	date := SessionDate(ref, hour)
	c.sanityCheck(date)
	return date
}

// sanityCheck flags session dates far from today. Never a hard error: clock
// skew and DST edges can legitimately land here.
func (c *Clock) sanityCheck(date time.Time) {
	today := SessionDate(c.now().In(c.loc), 24)
	days := int(math.Round(date.Sub(today).Hours() / 24))
	if days < -1 || days > 2 {
		c.log.Warnf("session date %s is %d day(s) from today %s",
			date.Format("2006-01-02"), days, today.Format("2006-01-02"))
	}
}
