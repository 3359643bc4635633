package validation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qsor27/FuturesTradingLog-sub002/logging"
)

// Save writes every entry as one pipe-delimited line and replaces path via
// write-then-rename, so a concurrent reader never sees a half-written file.
// Called on orderly shutdown and after each resolution.
func Save(t *Tracker, path string) error {
	var b strings.Builder
	for _, e := range t.Entries() {
		fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%t\n",
			e.ID,
			e.CloseTime.Format(time.RFC3339),
			e.Instrument,
			e.PnL.String(),
			e.Status,
			e.RequiresValidation,
		)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Load rebuilds a tracker from path, once at startup before any events are
// processed. A missing file is simply an empty tracker. A malformed line is
// skipped so one bad record cannot take the whole history down.
func Load(path string) (*Tracker, error) {
	t := NewTracker()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("open state: %w", err)
	}
	defer f.Close()

	log := logging.Component("state")
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		e, err := parseLine(sc.Text())
		if err != nil {
			log.WithError(err).Warnf("skipping state line %d in %s", line, path)
			continue
		}
		t.restore(e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return t, nil
}

func parseLine(s string) (Entry, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	if len(parts) != 6 {
		return Entry{}, fmt.Errorf("want 6 fields, got %d", len(parts))
	}
	closeTime, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return Entry{}, fmt.Errorf("close time: %w", err)
	}
	pnl, err := decimal.NewFromString(parts[3])
	if err != nil {
		return Entry{}, fmt.Errorf("pnl: %w", err)
	}
	requires, err := strconv.ParseBool(parts[5])
	if err != nil {
		return Entry{}, fmt.Errorf("requires flag: %w", err)
	}
	return Entry{
		ID:                 parts[0],
		CloseTime:          closeTime,
		Instrument:         parts[2],
		PnL:                pnl,
		Status:             parts[4],
		RequiresValidation: requires,
	}, nil
}
