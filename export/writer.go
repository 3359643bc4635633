package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qsor27/FuturesTradingLog-sub002/ledger"
	"github.com/qsor27/FuturesTradingLog-sub002/logging"
	"github.com/qsor27/FuturesTradingLog-sub002/session"
	"github.com/qsor27/FuturesTradingLog-sub002/validation"
)

// Header is the fixed first line of every export file. The empty terminal
// field is part of the contract: consumers expect the trailing comma.
var Header = []string{
	"Instrument", "Action", "Quantity", "Price", "Time", "ID", "E/X",
	"Position", "Order ID", "Name", "Commission", "Rate", "Account", "Connection", "",
}

// ErrRetriesExhausted wraps the last write error once all attempts failed.
var ErrRetriesExhausted = errors.New("export: retries exhausted")

const (
	writeAttempts = 3
	timeLayout    = "2006-01-02 15:04:05"
	exportedDir   = "exported"
	ratePlacehold = "1"
)

// Mode selects how export files are named and rotated.
type Mode int

const (
	// Daily writes one file per session date and reopens it across restarts.
	Daily Mode = iota
	// Sized writes timestamp-named files and archives them on rotation.
	Sized
)

type Options struct {
	Dir        string
	Prefix     string
	Mode       Mode
	MaxFileMB  int // size ceiling; 0 disables the size trigger
	Connection string
	RetryDelay time.Duration // between write attempts, default 1s
}

// Writer appends classified executions to rotating CSV files. A single mutex
// guards the dedup set, the open file and rotation state, so an append can
// never interleave with a rotation.
type Writer struct {
	opts  Options
	clock *session.Clock
	stat  *validation.StatusStore
	log   *logrus.Entry

	mu       sync.Mutex
	seen     map[string]struct{}
	f        *os.File
	w        *csv.Writer
	fileDate time.Time // session date the open file was created for
	path     string
}

func NewWriter(opts Options, clock *session.Clock, statuses *validation.StatusStore) *Writer {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Writer{
		opts:  opts,
		clock: clock,
		stat:  statuses,
		log:   logging.Component("export"),
		seen:  make(map[string]struct{}),
	}
}

// Append writes one row for the execution. A repeat execution id is a silent
// no-op. The id is only remembered once the row is on disk, so a failed
// write stays retryable on redelivery.
func (w *Writer) Append(e ledger.Execution, tag ledger.Tag, positionAfter int64) error {
	dedupID := e.DedupID()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen[dedupID]; dup {
		w.log.Debugf("duplicate execution %s dropped", dedupID)
		return nil
	}

	date := w.clock.SessionDateOf(e.Time)
	if err := w.ensureFile(date, e.Time); err != nil {
		return err
	}

	if err := w.writeRow(w.buildRow(e, dedupID, tag, positionAfter)); err != nil {
		w.log.WithError(err).Errorf("write failed, file %s", w.path)
		return err
	}
	w.seen[dedupID] = struct{}{}

	w.rotateIfOversized()
	return nil
}

// ensureFile opens the file for the given session date, lazily and in append
// mode, rotating first when the date has advanced past the open file's.
func (w *Writer) ensureFile(date, now time.Time) error {
	if w.f != nil {
		if w.opts.Mode != Daily || date.Equal(w.fileDate) {
			return nil
		}
		// Session advanced: close out the previous file. Daily files stay
		// where they are; same-date appends may still arrive after a restart.
		w.closeCurrent()
		w.log.Infof("rotated on session date change, closed %s", w.path)
	}
	return w.open(date, now)
}

func (w *Writer) open(date, now time.Time) error {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("%s_Executions_%s.csv", w.opts.Prefix, date.Format("20060102"))
	if w.opts.Mode == Sized {
		name = fmt.Sprintf("%s_Executions_%s.csv", w.opts.Prefix, now.Format("20060102_150405"))
	}
	path := filepath.Join(w.opts.Dir, name)

	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open export file %s: %w", path, err)
	}
	w.f = f
	w.w = csv.NewWriter(f)
	w.fileDate = date
	w.path = path

	if os.IsNotExist(statErr) {
		if err := w.writeRow(Header); err != nil {
			// A headerless file must never survive: later appends would
			// land rows on line one and a reopen would find the file
			// existing and skip the header for good. Drop it so the next
			// append starts over, header first.
			w.discardCurrent()
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

// discardCurrent closes and deletes the open file, clearing all open-file
// state. Only used before any row has been written.
func (w *Writer) discardCurrent() {
	path := w.path
	w.closeCurrent()
	if err := os.Remove(path); err != nil {
		w.log.WithError(err).Warnf("remove %s", path)
	}
	w.fileDate = time.Time{}
	w.path = ""
}

func (w *Writer) buildRow(e ledger.Execution, dedupID string, tag ledger.Tag, after int64) []string {
	if tag == ledger.Exit && after == 0 {
		// Enrichment: a closing fill may refer to a position the user has
		// already resolved elsewhere.
		pid := validation.PositionID(e.Time, e.Instrument, e.Account)
		if status, ok := w.stat.Get(pid); ok {
			w.log.Debugf("closing execution %s, position %s already marked %s", dedupID, pid, status)
		}
	}
	return []string{
		e.Instrument,
		e.Action.String(),
		strconv.FormatInt(e.Quantity, 10),
		e.Price.String(),
		e.Time.Format(timeLayout),
		dedupID,
		tag.String(),
		ledger.FormatPosition(after),
		e.OrderID,
		e.DisplayName(),
		e.Commission.StringFixed(2),
		ratePlacehold,
		e.Account,
		w.opts.Connection,
		"",
	}
}

// writeRow pushes one record through the csv writer with a bounded retry for
// transient I/O errors. Permission errors will not resolve by waiting and
// propagate immediately.
func (w *Writer) writeRow(record []string) error {
	var last error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		w.w.Write(record)
		w.w.Flush()
		err := w.w.Error()
		if err == nil {
			return nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("export write %s: %w", w.path, err)
		}
		last = err
		// The csv writer latches its error; start clean for the next attempt.
		w.w = csv.NewWriter(w.f)
		if attempt < writeAttempts {
			time.Sleep(w.opts.RetryDelay)
		}
	}
	return fmt.Errorf("export write %s after %d attempts: %w: %v", w.path, writeAttempts, ErrRetriesExhausted, last)
}

// rotateIfOversized runs after every successful append. In Sized mode the
// closed file moves into the exported subdirectory; Daily files are left in
// place. Rotation trouble is logged, never surfaced to the append caller.
func (w *Writer) rotateIfOversized() {
	if w.opts.MaxFileMB <= 0 || w.f == nil {
		return
	}
	info, err := w.f.Stat()
	if err != nil {
		w.log.WithError(err).Warnf("size check failed for %s", w.path)
		return
	}
	if info.Size() < int64(w.opts.MaxFileMB)*1024*1024 {
		return
	}

	closedPath := w.path
	w.closeCurrent()

	if w.opts.Mode == Sized {
		dest := filepath.Join(w.opts.Dir, exportedDir, filepath.Base(closedPath))
		err := os.MkdirAll(filepath.Dir(dest), 0o755)
		if err == nil {
			err = os.Rename(closedPath, dest)
		}
		if err != nil {
			w.log.WithError(err).Errorf("archive failed for %s", closedPath)
		} else {
			closedPath = dest
		}
	}
	w.log.Infof("rotated on size ceiling (%d MB), closed %s", w.opts.MaxFileMB, closedPath)
}

func (w *Writer) closeCurrent() {
	if w.f == nil {
		return
	}
	w.w.Flush()
	if err := w.f.Close(); err != nil {
		w.log.WithError(err).Warnf("close %s", w.path)
	}
	w.f = nil
	w.w = nil
}

// Close flushes and releases the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	w.w.Flush()
	err := w.w.Error()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	w.w = nil
	return err
}
