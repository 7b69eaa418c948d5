package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSnapshot_Roundtrip(t *testing.T) {
	// 1. Save a snapshot into a temp dir
	path := filepath.Join(t.TempDir(), "queue.json")
	s := NewSnapshotter(path)

	s.Save(QueueSnapshot{
		Members: []MemberSnapshot{
			{AccountID: 1, CredentialHandle: "key1", WalletAddress: "addr1",
				TargetMultiplier: decimal.NewFromFloat(2.5), BuyAmount: decimal.NewFromFloat(0.05)},
			{AccountID: 2, CredentialHandle: "key2", WalletAddress: "addr2",
				TargetMultiplier: decimal.NewFromFloat(2.0), BuyAmount: decimal.NewFromFloat(0.001)},
		},
	})

	// 2. Load it back
	got := s.Load()

	if got.Version != SchemaVersion {
		t.Errorf("Expected version %s, got %s", SchemaVersion, got.Version)
	}
	if len(got.Members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(got.Members))
	}

	// 3. Order and fields survive
	if got.Members[0].AccountID != 1 || got.Members[1].AccountID != 2 {
		t.Errorf("Member order lost: %+v", got.Members)
	}
	if !got.Members[0].TargetMultiplier.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("Multiplier mismatch: %s", got.Members[0].TargetMultiplier)
	}
	if got.Members[0].CredentialHandle != "key1" {
		t.Errorf("Credential mismatch: %s", got.Members[0].CredentialHandle)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := NewSnapshotter(filepath.Join(t.TempDir(), "nope.json"))

	got := s.Load()
	if len(got.Members) != 0 {
		t.Errorf("Missing file should load empty, got %d members", len(got.Members))
	}
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got := NewSnapshotter(path).Load()
	if len(got.Members) != 0 {
		t.Errorf("Corrupt file should load empty, got %d members", len(got.Members))
	}
}

func TestLoad_VersionMismatchIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	stale := `{"version":"0.9","members":[{"account_id":1,"credential_handle":"k","target_multiplier":"2","buy_amount":"0.01"}]}`
	if err := os.WriteFile(path, []byte(stale), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got := NewSnapshotter(path).Load()
	if len(got.Members) != 0 {
		t.Errorf("Mismatched version must be ignored, got %d members", len(got.Members))
	}
}

func TestSave_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	s := NewSnapshotter(path)

	s.Save(QueueSnapshot{Members: []MemberSnapshot{{AccountID: 1}}})
	s.Save(QueueSnapshot{Members: []MemberSnapshot{{AccountID: 2}}})

	got := s.Load()
	if len(got.Members) != 1 || got.Members[0].AccountID != 2 {
		t.Errorf("Second save should replace first: %+v", got.Members)
	}
}
