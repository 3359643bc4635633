package replay

import (
	"github.com/shopspring/decimal"

	"github.com/qsor27/FuturesTradingLog-sub002/engine"
	"github.com/qsor27/FuturesTradingLog-sub002/ledger"
)

// Player drives a Port from a recorded feed, synthesizing the
// position-changed events the live platform would deliver. Average-cost
// accounting is enough here: the player exists to exercise the pipeline, not
// to be a broker.
type Player struct {
	port engine.Port
	book map[ledger.Key]*bookEntry
}

type bookEntry struct {
	qty      int64
	cost     decimal.Decimal // entry cost of the open quantity
	realized decimal.Decimal // realized PnL of the current holding period
}

func NewPlayer(port engine.Port) *Player {
	return &Player{port: port, book: make(map[ledger.Key]*bookEntry)}
}

// Play feeds every execution through the port, following each with the
// position update it implies. Returns the number of executions played.
func (p *Player) Play(fd *Feed) (int, error) {
	n := 0
	for {
		e, ok, err := fd.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		p.port.OnExecution(e)
		p.port.OnPositionChanged(p.apply(e))
		n++
	}
}

func (p *Player) apply(e ledger.Execution) engine.PositionUpdate {
	k := ledger.Key{Account: e.Account, Instrument: e.Instrument}
	b := p.book[k]
	if b == nil {
		b = &bookEntry{}
		p.book[k] = b
	}

	d := e.Delta()
	pre := b.qty
	post := pre + d

	if pre == 0 || sameSign(pre, d) {
		// Opening or adding to exposure.
		b.cost = b.cost.Add(e.Price.Mul(decimal.NewFromInt(absInt(d))))
	} else {
		closed := minInt(absInt(d), absInt(pre))
		avg := b.cost.Div(decimal.NewFromInt(absInt(pre)))
		diff := e.Price.Sub(avg)
		if pre < 0 {
			diff = diff.Neg()
		}
		b.realized = b.realized.Add(diff.Mul(decimal.NewFromInt(closed)))
		b.cost = b.cost.Sub(avg.Mul(decimal.NewFromInt(closed)))
		if post != 0 && sameSign(post, d) {
			// Reversed through zero: the remainder opens the other way.
			b.cost = e.Price.Mul(decimal.NewFromInt(absInt(post)))
		}
	}
	b.qty = post

	upd := engine.PositionUpdate{
		Account:     e.Account,
		Instrument:  e.Instrument,
		Quantity:    post,
		RealizedPnL: b.realized,
		Time:        e.Time,
	}
	if post == 0 {
		b.cost = decimal.Zero
		b.realized = decimal.Zero
	}
	return upd
}

func sameSign(a, b int64) bool {
	return (a > 0) == (b > 0) && a != 0 && b != 0
}

func absInt(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func minInt(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
