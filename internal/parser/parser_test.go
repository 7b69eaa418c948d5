package parser

import (
	"testing"

	"luxe_sniper/internal/models"
)

const testMint = "TOKEN111111111111111111111111111111"

func TestFeed_BuySignal(t *testing.T) {
	p := New()

	events := p.Feed("🟢 BUYING " + testMint + "\n")

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Kind != models.EventBuySignal {
		t.Errorf("Expected buy signal, got %v", events[0].Kind)
	}
	if events[0].TokenAddress != testMint {
		t.Errorf("Expected %s, got %s", testMint, events[0].TokenAddress)
	}
}

func TestFeed_ChunkSplitAcrossBoundary(t *testing.T) {
	// A buy line arriving split across two reads must produce exactly
	// one event, identical to the unsplit case.
	p := New()

	first := p.Feed("🟢 BUY")
	if len(first) != 0 {
		t.Fatalf("Expected no events from partial chunk, got %d", len(first))
	}

	second := p.Feed("ING " + testMint + "\n")
	if len(second) != 1 {
		t.Fatalf("Expected 1 event after completing line, got %d", len(second))
	}
	if second[0].Kind != models.EventBuySignal || second[0].TokenAddress != testMint {
		t.Errorf("Wrong event from split line: %+v", second[0])
	}
}

func TestFeed_MultipleEventsOneChunk(t *testing.T) {
	mintA := "AAAA1111111111111111111111111111"
	mintB := "BBBB1111111111111111111111111111"
	p := New()

	events := p.Feed("🟢 BUYING " + mintA + "\nnoise line\n🟢 BUYING " + mintB + "\n")

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	// Textual order must be preserved.
	if events[0].TokenAddress != mintA || events[1].TokenAddress != mintB {
		t.Errorf("Events out of order: %v then %v", events[0].TokenAddress, events[1].TokenAddress)
	}
}

func TestFeed_SellClassificationPrecedence(t *testing.T) {
	// A line carrying both an emergency marker and a processing marker
	// must classify once, as a stop loss.
	p := New()

	events := p.Feed("🚨 EMERGENCY EXIT | Processing: " + testMint + "\n")

	if len(events) != 1 {
		t.Fatalf("Expected exactly 1 event, got %d", len(events))
	}
	if events[0].Kind != models.EventSellSignal {
		t.Fatalf("Expected sell signal, got %v", events[0].Kind)
	}
	if events[0].Reason != models.ReasonStopLoss {
		t.Errorf("Expected stop loss, got %s", events[0].Reason)
	}
}

func TestFeed_TargetHitClassification(t *testing.T) {
	p := New()

	events := p.Feed("🎯 TARGET HIT — selling " + testMint + "\n")

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Reason != models.ReasonTargetHit {
		t.Errorf("Expected target hit, got %s", events[0].Reason)
	}
}

func TestFeed_GenericSoldFallback(t *testing.T) {
	p := New()

	events := p.Feed("🔄 [RUN 1/2] Processing: " + testMint + "\n")

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Kind != models.EventSellSignal {
		t.Fatalf("Expected sell signal, got %v", events[0].Kind)
	}
	if events[0].Reason != models.ReasonManualSell {
		t.Errorf("Expected generic sold reason, got %s", events[0].Reason)
	}
}

func TestFeed_UnrecognizedTextDropped(t *testing.T) {
	p := New()

	events := p.Feed("💰 Price: $0.0001 | Liq: 12k\nrandom chatter\n")

	if len(events) != 0 {
		t.Errorf("Expected no events from noise, got %d", len(events))
	}
}

func TestFeed_BuyWithoutAddressDropped(t *testing.T) {
	// The engine prints "Rug 5% — BUYING" before the actual buy line;
	// without a mint address it must not produce a signal.
	p := New()

	events := p.Feed("🟢 Rug 5% — BUYING\n")

	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestFeed_StatusNote(t *testing.T) {
	p := New()

	// The startup banner mentions "EMERGENCY" but must classify as a
	// status note, never as a sell.
	events := p.Feed("🚀 BOT STARTED WITH EMERGENCY EXIT (-40%) ACTIVE\n")

	if len(events) != 1 || events[0].Kind != models.EventStatusNote {
		t.Fatalf("Expected one status note for startup banner, got %+v", events)
	}

	events = p.Feed("🚀 Starting Scan [12:00:00]...\n")
	if len(events) != 1 || events[0].Kind != models.EventStatusNote {
		t.Errorf("Expected one status note, got %+v", events)
	}
}

func TestFeed_SignatureURLNotMistakenForMint(t *testing.T) {
	// Transaction signatures are longer than 44 chars; the address
	// matcher must not pick a 44-char window out of one.
	p := New()

	sig := "5j2KacRt8LsrkW9eJ9wYfuLz3hXqPBdNUvtEXWu4FxkzvDbGp8qT1mVaYcN6RhJdSe7AUwBnHgM4iK2oPfXrZy3v"
	events := p.Feed("✅ SELL TX: https://explorer.solana.com/tx/" + sig + "\n")

	if len(events) != 0 {
		t.Errorf("Expected no events from signature line, got %d", len(events))
	}
}
