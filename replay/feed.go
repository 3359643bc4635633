package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qsor27/FuturesTradingLog-sub002/ledger"
)

// Feed reads recorded executions from a CSV file.
//
// Expected columns:
// time,instrument,account,action,quantity,price,exec_id,order_id,commission
// A header row is allowed; exec_id, order_id and commission may be empty.
type Feed struct {
	f *os.File
	r *csv.Reader

	sawFirst bool
}

func NewFeed(path string) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return &Feed{f: f, r: r}, nil
}

func (fd *Feed) Close() error {
	if fd.f != nil {
		return fd.f.Close()
	}
	return nil
}

// Next returns the next execution; the bool is false on end of feed.
func (fd *Feed) Next() (ledger.Execution, bool, error) {
	for {
		row, err := fd.r.Read()
		if err == io.EOF {
			return ledger.Execution{}, false, nil
		}
		if err != nil {
			return ledger.Execution{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		if !fd.sawFirst {
			fd.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		e, ok, err := parseRow(row)
		if err != nil {
			return ledger.Execution{}, false, err
		}
		if !ok {
			continue
		}
		return e, true, nil
	}
}

func parseRow(row []string) (ledger.Execution, bool, error) {
	if len(row) < 6 {
		return ledger.Execution{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return ledger.Execution{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ledger.Execution{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}

	instrument := strings.TrimSpace(row[1])
	if instrument == "" {
		return ledger.Execution{}, false, nil
	}

	qty, err := strconv.ParseInt(strings.TrimSpace(row[4]), 10, 64)
	if err != nil {
		return ledger.Execution{}, false, fmt.Errorf("bad quantity %q: %w", row[4], err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(row[5]))
	if err != nil {
		return ledger.Execution{}, false, fmt.Errorf("bad price %q: %w", row[5], err)
	}

	e := ledger.Execution{
		Time:       t,
		Instrument: instrument,
		Account:    strings.TrimSpace(row[2]),
		Action:     ledger.ParseAction(row[3]),
		Quantity:   qty,
		SignedQty:  qty,
		Price:      price,
	}
	if len(row) > 6 {
		e.ExecID = strings.TrimSpace(row[6])
	}
	if len(row) > 7 {
		e.OrderID = strings.TrimSpace(row[7])
	}
	if len(row) > 8 && strings.TrimSpace(row[8]) != "" {
		c, err := decimal.NewFromString(strings.TrimSpace(row[8]))
		if err != nil {
			return ledger.Execution{}, false, fmt.Errorf("bad commission %q: %w", row[8], err)
		}
		e.Commission = c
	}
	return e, true, nil
}
