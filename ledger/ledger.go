package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/qsor27/FuturesTradingLog-sub002/logging"
)

// Action is the platform-reported side of an execution.
type Action int

const (
	ActionUnknown Action = iota
	Buy
	BuyToCover
	Sell
	SellShort
)

// ParseAction maps a platform action string onto a known side. Anything
// unrecognized comes back as ActionUnknown, which makes classification fall
// back to the platform's signed quantity.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy
	case "buytocover", "buy_to_cover":
		return BuyToCover
	case "sell":
		return Sell
	case "sellshort", "sell_short":
		return SellShort
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case Buy:
		return "Buy"
	case BuyToCover:
		return "BuyToCover"
	case Sell:
		return "Sell"
	case SellShort:
		return "SellShort"
	default:
		return "Unknown"
	}
}

// Execution is one fill delivered by the platform. It is processed once and
// never stored.
type Execution struct {
	Instrument string
	Name       string // display name, falls back to Instrument when empty
	Account    string
	Action     Action
	Quantity   int64 // magnitude
	SignedQty  int64 // platform-signed quantity, used when Action is unknown
	Price      decimal.Decimal
	Time       time.Time
	ExecID     string // platform id; may be absent
	OrderID    string
	Commission decimal.Decimal
}

// DedupID is the key used to drop redelivered executions. When the platform
// supplies no id one is synthesized from instrument, timestamp and order id.
func (e Execution) DedupID() string {
	if e.ExecID != "" {
		return e.ExecID
	}
	return fmt.Sprintf("%s_%d_%s", e.Instrument, e.Time.UnixNano(), e.OrderID)
}

// DisplayName is the instrument name shown in the export file.
func (e Execution) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Instrument
}

// Delta is the signed position change this execution carries. Buy-side
// actions add, sell-side actions subtract; an unrecognized action trusts the
// platform's signed quantity rather than failing.
func (e Execution) Delta() int64 {
	q := e.Quantity
	if q < 0 {
		q = -q
	}
	switch e.Action {
	case Buy, BuyToCover:
		return q
	case Sell, SellShort:
		return -q
	default:
		return e.SignedQty
	}
}

// Tag says whether an execution added exposure or reduced it.
type Tag int

const (
	Entry Tag = iota
	Exit
)

func (t Tag) String() string {
	if t == Exit {
		return "Exit"
	}
	return "Entry"
}

// Key scopes ledger state to one account/instrument pair.
type Key struct {
	Account    string
	Instrument string
}

// Ledger accumulates signed position quantities per key. State lives for the
// process lifetime only: it is derivable from the execution stream, so after
// a restart tags are relative to executions seen since start.
type Ledger struct {
	mu  sync.Mutex
	pos map[Key]int64
	log *logrus.Entry
}

func New() *Ledger {
	return &Ledger{
		pos: make(map[Key]int64),
		log: logging.Component("ledger"),
	}
}

// Classify applies one execution to the ledger and reports whether it opened
// or closed exposure, together with the position after the fill. A
// misclassified row beats a dropped one, so any failure here is logged and
// tagged Entry.
func (l *Ledger) Classify(e Execution) (tag Tag, after int64) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("classify %s/%s: %v, defaulting to Entry", e.Account, e.Instrument, r)
			tag = Entry
			after = l.Position(Key{Account: e.Account, Instrument: e.Instrument})
		}
	}()
	return l.classify(e)
}

func (l *Ledger) classify(e Execution) (Tag, int64) {
	k := Key{Account: e.Account, Instrument: e.Instrument}
	d := e.Delta()

	l.mu.Lock()
	defer l.mu.Unlock()

	pre := l.pos[k]
	post := pre + d
	l.pos[k] = post

	switch {
	case pre == 0:
		return Entry, post
	case post == 0:
		return Exit, post
	case (pre > 0) == (post > 0):
		if abs(post) > abs(pre) {
			return Entry, post
		}
		return Exit, post
	default:
		// Reversed through zero in a single fill.
		return Exit, post
	}
}

// Position snapshots the current quantity for one key.
func (l *Ledger) Position(k Key) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pos[k]
}

// FormatPosition renders a signed quantity the way the export file shows it:
// "3 L", "2 S", or "-" when flat.
func FormatPosition(q int64) string {
	switch {
	case q > 0:
		return fmt.Sprintf("%d L", q)
	case q < 0:
		return fmt.Sprintf("%d S", -q)
	default:
		return "-"
	}
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
