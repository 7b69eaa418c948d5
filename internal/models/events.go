package models

// EventKind tags an EngineEvent variant.
type EventKind int

const (
	EventBuySignal EventKind = iota
	EventSellSignal
	EventStatusNote
)

// EngineEvent is one structured signal extracted from the scanner
// engine's raw output. Events are ephemeral: they drive dispatch and
// are never persisted.
type EngineEvent struct {
	Kind         EventKind
	TokenAddress string      // Set for buy and sell signals
	Reason       CloseReason // Set for sell signals only
	Text         string      // Raw line, set for status notes
}

func (e EngineEvent) String() string {
	switch e.Kind {
	case EventBuySignal:
		return "buy " + e.TokenAddress
	case EventSellSignal:
		return "sell " + e.TokenAddress + " (" + string(e.Reason) + ")"
	default:
		return "status"
	}
}
