package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qsor27/FuturesTradingLog-sub002/gate"
	"github.com/qsor27/FuturesTradingLog-sub002/ledger"
	"github.com/qsor27/FuturesTradingLog-sub002/logging"
	"github.com/qsor27/FuturesTradingLog-sub002/validation"
)

// PositionUpdate is the platform's position-changed event.
type PositionUpdate struct {
	Account     string
	Instrument  string
	Quantity    int64 // signed; 0 means the position went flat
	RealizedPnL decimal.Decimal
	Time        time.Time
}

// Port is the inbound boundary a host platform adapter invokes. All three
// entry points may race each other and shutdown, and none of them lets a
// panic escape back into the platform's dispatch loop.
type Port interface {
	OnExecution(e ledger.Execution)
	OnPositionChanged(u PositionUpdate)
	OnOrderIntent(o gate.OrderIntent)
}

// Prompter is the UI collaborator boundary. Prompt presents pending entries
// for Valid/Invalid review and reports whether the user resolved all of
// them. Implementations are invoked off the platform callback goroutine.
type Prompter interface {
	Prompt(entries []validation.Entry) bool
}

// LogPrompter stands in for the UI in headless runs: it lists the pending
// entries in the log and resolves nothing.
type LogPrompter struct{}

func (LogPrompter) Prompt(entries []validation.Entry) bool {
	log := logging.Component("prompt")
	for _, e := range entries {
		log.Warnf("position %s (%s) closed %s with PnL %s awaits validation",
			e.ID, e.Instrument, e.CloseTime.Format(time.RFC3339), e.PnL.String())
	}
	return false
}
