package gate

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qsor27/FuturesTradingLog-sub002/logging"
	"github.com/qsor27/FuturesTradingLog-sub002/validation"
)

// Reason codes for a gate decision.
const (
	ReasonDisabled        = "disabled"
	ReasonAutomatedBypass = "automated_bypass"
	ReasonOverride        = "override"
	ReasonClear           = "clear"
	ReasonPending         = "pending_validations"
)

// OrderIntent is a new order observed at the platform boundary before it
// starts working.
type OrderIntent struct {
	Instrument string
	Account    string
	OrderID    string
	Automated  bool // attributable to a strategy signal rather than a human
}

// Decision is advisory: a blocked intent is surfaced to the UI collaborator,
// never cancelled by this core.
type Decision struct {
	Allowed bool
	Reason  string
	Pending []validation.Entry
}

// Policy is the static enforcement configuration.
type Policy struct {
	BlockingEnabled bool
	BypassAutomated bool
	GracePeriod     time.Duration // 0 disables the grace filter
	MaxPending      int           // cap on entries surfaced to the UI, 0 = no cap
}

// Gate decides whether a new order intent may proceed while unvalidated
// losing positions exist for its instrument.
type Gate struct {
	policy   Policy
	tracker  *validation.Tracker
	override func() bool // emergency-override gesture, read per check
	log      *logrus.Entry
}

func New(policy Policy, tracker *validation.Tracker, override func() bool) *Gate {
	if override == nil {
		override = func() bool { return false }
	}
	return &Gate{
		policy:   policy,
		tracker:  tracker,
		override: override,
		log:      logging.Component("gate"),
	}
}

// Check runs the bypass chain in order and, failing every bypass, collects
// the blocking set for the intent's instrument.
func (g *Gate) Check(intent OrderIntent, now time.Time) Decision {
	if !g.policy.BlockingEnabled {
		return Decision{Allowed: true, Reason: ReasonDisabled}
	}
	if intent.Automated && g.policy.BypassAutomated {
		g.log.Infof("automated order %s on %s bypassed the validation gate", intent.OrderID, intent.Instrument)
		return Decision{Allowed: true, Reason: ReasonAutomatedBypass}
	}
	if g.override() {
		// Deliberate escape hatch: loud, not silent.
		g.log.Warnf("EMERGENCY OVERRIDE active, order %s on %s allowed despite pending validations",
			intent.OrderID, intent.Instrument)
		return Decision{Allowed: true, Reason: ReasonOverride}
	}

	pending := g.tracker.GetUnvalidatedForInstrument(intent.Instrument)
	if g.policy.GracePeriod > 0 {
		kept := pending[:0]
		for _, e := range pending {
			if now.Sub(e.CloseTime) >= g.policy.GracePeriod {
				kept = append(kept, e)
			}
		}
		pending = kept
	}
	if len(pending) == 0 {
		return Decision{Allowed: true, Reason: ReasonClear}
	}
	if g.policy.MaxPending > 0 && len(pending) > g.policy.MaxPending {
		pending = pending[:g.policy.MaxPending]
	}

	g.log.Warnf("blocking order %s on %s: %d unresolved validation(s)",
		intent.OrderID, intent.Instrument, len(pending))
	return Decision{Allowed: false, Reason: ReasonPending, Pending: pending}
}
