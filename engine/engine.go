package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qsor27/FuturesTradingLog-sub002/config"
	"github.com/qsor27/FuturesTradingLog-sub002/export"
	"github.com/qsor27/FuturesTradingLog-sub002/gate"
	"github.com/qsor27/FuturesTradingLog-sub002/ledger"
	"github.com/qsor27/FuturesTradingLog-sub002/logging"
	"github.com/qsor27/FuturesTradingLog-sub002/pkg/id"
	"github.com/qsor27/FuturesTradingLog-sub002/session"
	"github.com/qsor27/FuturesTradingLog-sub002/validation"
)

// Engine wires the ledger, export writer, validation tracker and gate behind
// the platform-facing Port.
type Engine struct {
	cfg      *config.Config
	clock    *session.Clock
	ledger   *ledger.Ledger
	writer   *export.Writer
	tracker  *validation.Tracker
	statuses *validation.StatusStore
	gate     *gate.Gate
	audit    *validation.AuditStore // nil when audit is disabled
	prompter Prompter

	override atomic.Bool
	saveMu   sync.Mutex
	runID    string
	log      *logrus.Entry
}

// New restores persisted validation state and assembles the pipeline. Called
// once at startup, before any platform event is delivered. A nil prompter
// falls back to the logging one.
func New(cfg *config.Config, prompter Prompter) (*Engine, error) {
	if prompter == nil {
		prompter = LogPrompter{}
	}

	tracker, err := validation.Load(cfg.State.FilePath)
	if err != nil {
		return nil, fmt.Errorf("load validation state: %w", err)
	}

	clock := session.NewClock(cfg.Session.Timezone, cfg.Session.CutoverEnabled, cfg.Session.CutoverHour)
	statuses := validation.NewStatusStore()

	mode := export.Daily
	if cfg.Export.Mode == config.ModeSize {
		mode = export.Sized
	}
	writer := export.NewWriter(export.Options{
		Dir:        cfg.Export.Directory,
		Prefix:     cfg.Export.Prefix,
		Mode:       mode,
		MaxFileMB:  cfg.Export.MaxFileMB,
		Connection: cfg.Export.Connection,
	}, clock, statuses)

	eng := &Engine{
		cfg:      cfg,
		clock:    clock,
		ledger:   ledger.New(),
		writer:   writer,
		tracker:  tracker,
		statuses: statuses,
		prompter: prompter,
		runID:    id.New(),
		log:      logging.Component("engine"),
	}
	eng.override.Store(cfg.Enforcement.EmergencyOverride)

	eng.gate = gate.New(gate.Policy{
		BlockingEnabled: cfg.Enforcement.BlockingEnabled,
		BypassAutomated: cfg.Enforcement.BypassAutomated,
		GracePeriod:     time.Duration(cfg.Enforcement.GracePeriodSec) * time.Second,
		MaxPending:      cfg.Enforcement.MaxPendingShown,
	}, tracker, eng.override.Load)

	if cfg.State.AuditDBPath != "" {
		audit, err := validation.OpenAudit(cfg.State.AuditDBPath)
		if err != nil {
			// Audit is advisory history; keep running without it.
			eng.log.WithError(err).Warnf("audit store unavailable at %s", cfg.State.AuditDBPath)
		} else {
			eng.audit = audit
		}
	}

	eng.log.Infof("engine up, run %s, restored %d validation entries", eng.runID, len(tracker.Entries()))
	return eng, nil
}

// OnExecution classifies one fill against the ledger and appends it to the
// export file. Export failures are logged and swallowed here so one bad
// write never crashes the ingestion loop.
func (e *Engine) OnExecution(x ledger.Execution) {
	defer e.recovered("execution")

	tag, after := e.ledger.Classify(x)
	if err := e.writer.Append(x, tag, after); err != nil {
		e.log.WithError(err).Errorf("export failed for execution %s on %s", x.DedupID(), x.Instrument)
	}
}

// OnPositionChanged registers positions that just went flat. A losing close
// requires human validation before the next trade on that instrument.
func (e *Engine) OnPositionChanged(u PositionUpdate) {
	defer e.recovered("position")

	if u.Quantity != 0 || !u.RealizedPnL.IsNegative() {
		return
	}
	pid := validation.PositionID(u.Time, u.Instrument, u.Account)
	e.tracker.AddPosition(pid, u.Time, u.Instrument, u.RealizedPnL, true)
	e.log.Infof("position %s closed with loss %s, validation required", pid, u.RealizedPnL.String())
	e.saveState()
}

// OnOrderIntent consults the gate. A block is advisory: the pending list is
// handed to the prompter on its own goroutine, so the platform callback
// thread never waits on a human.
func (e *Engine) OnOrderIntent(o gate.OrderIntent) {
	defer e.recovered("order")

	d := e.gate.Check(o, time.Now())
	if d.Allowed {
		return
	}
	pending := d.Pending
	go func() {
		defer e.recovered("prompt")
		if !e.prompter.Prompt(pending) {
			e.log.Warnf("validation prompt dismissed with %d unresolved entr(ies)", len(pending))
		}
	}()
}

// Resolve is the UI write-back path for one Valid/Invalid decision.
func (e *Engine) Resolve(positionID, status string) {
	e.tracker.MarkValidated(positionID, status)
	e.statuses.Set(positionID, status)
	if e.audit != nil {
		if entry, ok := e.tracker.Get(positionID); ok {
			if err := e.audit.RecordResolution(entry, time.Now()); err != nil {
				e.log.WithError(err).Warn("audit record failed")
			}
		}
	}
	e.saveState()
}

// Pending lists every entry still awaiting review, most recent close first.
func (e *Engine) Pending() []validation.Entry {
	return e.tracker.GetUnvalidated()
}

// SetEmergencyOverride toggles the loud escape hatch.
func (e *Engine) SetEmergencyOverride(on bool) {
	e.override.Store(on)
	if on {
		e.log.Warn("emergency override ENABLED")
	} else {
		e.log.Info("emergency override disabled")
	}
}

// Close saves state and releases file handles on orderly shutdown. State is
// also saved on every resolution, so a hard kill loses at most the entries
// registered since the last close/resolution.
func (e *Engine) Close() error {
	e.saveState()
	var first error
	if err := e.writer.Close(); err != nil {
		first = err
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (e *Engine) saveState() {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if err := validation.Save(e.tracker, e.cfg.State.FilePath); err != nil {
		e.log.WithError(err).Errorf("state save failed, path %s", e.cfg.State.FilePath)
	}
}

// recovered is deferred at the top of every event-handling entry point: an
// uncaught panic here could destabilize the host process for unrelated
// functionality.
func (e *Engine) recovered(where string) {
	if r := recover(); r != nil {
		e.log.Errorf("recovered in %s handler: %v", where, r)
	}
}
