// Package storage persists a best-effort snapshot of the invest queue
// so a restart can re-subscribe the same accounts. Everything here is
// non-fatal: a failed write is logged and the bot keeps running on the
// in-memory state.
package storage

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/shopspring/decimal"
)

// SchemaVersion guards against reading a snapshot written by an
// incompatible build.
const SchemaVersion = "1.0"

// MemberSnapshot is the recoverable slice of one queue member: enough
// to re-enqueue and restart the engine, deliberately not including
// open positions. Positions are a live-engine-observed fact and a
// stale file must not resurrect them.
type MemberSnapshot struct {
	AccountID        int64           `json:"account_id"`
	CredentialHandle string          `json:"credential_handle"`
	WalletAddress    string          `json:"wallet_address"`
	TargetMultiplier decimal.Decimal `json:"target_multiplier"`
	BuyAmount        decimal.Decimal `json:"buy_amount"`
}

// QueueSnapshot is the on-disk document. Member order is queue order.
type QueueSnapshot struct {
	Version string           `json:"version"`
	SavedAt string           `json:"saved_at"`
	Members []MemberSnapshot `json:"members"`
}

// Snapshotter owns one snapshot file.
type Snapshotter struct {
	path string
}

func NewSnapshotter(path string) *Snapshotter {
	return &Snapshotter{path: path}
}

// Save writes the snapshot atomically: temp file, fsync, rename. A
// crash mid-write leaves the previous snapshot intact.
func (s *Snapshotter) Save(snap QueueSnapshot) {
	snap.Version = SchemaVersion

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Printf("ERROR: snapshot marshal failed: %v", err)
		return
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Printf("ERROR: snapshot temp file failed: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		log.Printf("ERROR: snapshot write failed: %v", err)
		return
	}
	if err := f.Sync(); err != nil {
		log.Printf("ERROR: snapshot sync failed: %v", err)
		return
	}
	f.Close()

	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("ERROR: snapshot rename failed: %v", err)
	}
}

// Load reads the snapshot. A missing file is a normal first run and
// returns an empty snapshot; a corrupt or version-mismatched file is
// logged and likewise returns empty rather than failing startup.
func (s *Snapshotter) Load() QueueSnapshot {
	var snap QueueSnapshot

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return snap
	}

	f, err := os.Open(s.path)
	if err != nil {
		log.Printf("WARN: snapshot open failed: %v", err)
		return QueueSnapshot{}
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		log.Printf("WARN: snapshot read failed: %v", err)
		return QueueSnapshot{}
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		log.Printf("WARN: snapshot unreadable, ignoring: %v", err)
		return QueueSnapshot{}
	}
	if snap.Version != SchemaVersion {
		log.Printf("WARN: snapshot version %q != %q, ignoring", snap.Version, SchemaVersion)
		return QueueSnapshot{}
	}
	return snap
}
