package validation

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/qsor27/FuturesTradingLog-sub002/pkg/id"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS validations (
	record_id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	close_time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	pnl TEXT NOT NULL,
	status TEXT NOT NULL,
	resolved_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validations_position ON validations(position_id);
`

// AuditStore keeps an append-only history of validation resolutions in
// sqlite. It is advisory only: the pipe-delimited state file remains the
// restart source of truth, and audit failures never block a resolution.
type AuditStore struct {
	db *sql.DB
}

func OpenAudit(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &AuditStore{db: db}, nil
}

// RecordResolution appends one resolved entry.
func (a *AuditStore) RecordResolution(e Entry, resolvedAt time.Time) error {
	_, err := a.db.Exec(`
		INSERT INTO validations
		(record_id, position_id, close_time, instrument, pnl, status, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.New(), e.ID, e.CloseTime, e.Instrument, e.PnL.String(), e.Status, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

func (a *AuditStore) Close() error {
	return a.db.Close()
}
