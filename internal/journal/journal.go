// Package journal keeps a durable record of every trade the fan-out
// books, separate from the in-memory registry. The registry is the
// truth for live dispatch; the journal only feeds history views and
// survives restarts.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"luxe_sniper/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	token TEXT NOT NULL,
	amount TEXT NOT NULL,
	target REAL NOT NULL,
	opened_at DATETIME NOT NULL,
	closed_at DATETIME,
	reason TEXT,
	is_loss BOOLEAN
);
CREATE INDEX IF NOT EXISTS idx_trades_chat ON trades(chat_id);
CREATE INDEX IF NOT EXISTS idx_trades_open ON trades(chat_id, token, closed_at);
`

// Entry is one journal row for history display.
type Entry struct {
	Token    string
	Amount   string
	Target   float64
	OpenedAt time.Time
	ClosedAt sql.NullTime
	Reason   sql.NullString
}

// Journal is a sqlite-backed trade log. Implements the dispatcher's
// TradeObserver.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database and ensures the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// PositionOpened records a fresh buy. Failures are logged and dropped;
// the journal must never stall dispatch.
func (j *Journal) PositionOpened(accountID int64, pos models.Position) {
	target, _ := pos.TargetMultiplier.Float64()
	_, err := j.db.Exec(
		`INSERT INTO trades (chat_id, token, amount, target, opened_at) VALUES (?, ?, ?, ?, ?)`,
		accountID, pos.TokenAddress, pos.Amount.String(), target, pos.AcquiredAt,
	)
	if err != nil {
		log.Printf("journal: record open failed: %v", err)
	}
}

// PositionClosed marks the matching open row as closed. If the open
// was never journaled (e.g. journal added mid-flight) the close is
// inserted standalone so history still shows it.
func (j *Journal) PositionClosed(accountID int64, closed models.ClosedPosition) {
	res, err := j.db.Exec(
		`UPDATE trades SET closed_at = ?, reason = ?, is_loss = ?
		 WHERE id = (SELECT id FROM trades WHERE chat_id = ? AND token = ? AND closed_at IS NULL ORDER BY opened_at LIMIT 1)`,
		closed.ClosedAt, string(closed.Reason), closed.Reason.IsLoss(),
		accountID, closed.TokenAddress,
	)
	if err != nil {
		log.Printf("journal: record close failed: %v", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		target, _ := closed.TargetMultiplier.Float64()
		_, err := j.db.Exec(
			`INSERT INTO trades (chat_id, token, amount, target, opened_at, closed_at, reason, is_loss)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID, closed.TokenAddress, closed.Amount.String(), target,
			closed.AcquiredAt, closed.ClosedAt, string(closed.Reason), closed.Reason.IsLoss(),
		)
		if err != nil {
			log.Printf("journal: insert close failed: %v", err)
		}
	}
}

// History returns the most recent entries for one chat, newest first.
func (j *Journal) History(accountID int64, limit int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT token, amount, target, opened_at, closed_at, reason
		 FROM trades WHERE chat_id = ? ORDER BY opened_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Token, &e.Amount, &e.Target, &e.OpenedAt, &e.ClosedAt, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Record returns the chat's win/loss counts for the stats view.
func (j *Journal) Record(accountID int64) (hits, losses int, err error) {
	err = j.db.QueryRow(
		`SELECT
		   COUNT(CASE WHEN is_loss = 0 THEN 1 END),
		   COUNT(CASE WHEN is_loss = 1 THEN 1 END)
		 FROM trades WHERE chat_id = ? AND closed_at IS NOT NULL`,
		accountID,
	).Scan(&hits, &losses)
	return hits, losses, err
}
