package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseReason explains why a position left the open set.
// It decides which history bucket a closed position lands in.
type CloseReason string

const (
	ReasonTargetHit  CloseReason = "TARGET_HIT"
	ReasonStopLoss   CloseReason = "STOP_LOSS"
	ReasonManualSell CloseReason = "MANUAL_SELL"
	ReasonPanicSell  CloseReason = "PANIC_SELL"
)

// IsLoss reports whether the reason counts against the account's record.
// Target hits are wins; everything else (stop loss, manual exit, panic)
// goes into the losses bucket, matching how the scanner reports them.
func (r CloseReason) IsLoss() bool {
	return r != ReasonTargetHit
}

// Position is a currently-open, unsold stake in one token for one account.
type Position struct {
	TokenAddress     string          `json:"token_address"`     // Mint address of the traded token
	Amount           decimal.Decimal `json:"amount"`            // Stake committed, in SOL
	TargetMultiplier decimal.Decimal `json:"target_multiplier"` // Take-profit multiple snapshotted at buy time
	AcquiredAt       time.Time       `json:"acquired_at"`
}

// ClosedPosition is a Position plus the close outcome.
type ClosedPosition struct {
	Position
	ClosedAt time.Time   `json:"closed_at"`
	Reason   CloseReason `json:"reason"`
}

// Account holds everything the bot tracks for one chat.
//
// The credential handle is an opaque base58 key reference passed through
// to the executor scripts. It must never be logged or displayed in full.
type Account struct {
	ID               int64            `json:"id"`                // Telegram chat id
	CredentialHandle string           `json:"-"`                 // Signing credential, never serialized with state
	WalletAddress    string           `json:"wallet_address"`    // Derived public address, safe to show
	Connected        bool             `json:"connected"`         // Whether a credential is currently bound
	TargetMultiplier decimal.Decimal  `json:"target_multiplier"` // Current take-profit setting
	BuyAmount        decimal.Decimal  `json:"buy_amount"`        // Stake per buy, in SOL
	BalanceText      string           `json:"-"`                 // Cached display balance, dropped on disconnect
	OpenPositions    []Position       `json:"open_positions"`    // Acquisition order, unique by token address
	ClosedHits       []ClosedPosition `json:"closed_hits"`       // Append-only target-hit history
	ClosedLosses     []ClosedPosition `json:"closed_losses"`     // Append-only loss history
}

// DefaultTargetMultiplier and DefaultBuyAmount seed a fresh account.
var (
	DefaultTargetMultiplier = decimal.NewFromFloat(2.0)
	DefaultBuyAmount        = decimal.NewFromFloat(0.001)
)

// HasOpenPosition reports whether the account already holds the token.
func (a *Account) HasOpenPosition(tokenAddress string) bool {
	for _, p := range a.OpenPositions {
		if p.TokenAddress == tokenAddress {
			return true
		}
	}
	return false
}
