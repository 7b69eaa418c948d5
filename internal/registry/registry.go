package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"luxe_sniper/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Get for an id that was never seen.
// Accounts are created lazily on first contact, so hitting this in
// normal operation means a caller skipped GetOrCreate.
var ErrNotFound = errors.New("account not found")

// ErrStaleCredential means a queue member's credential was cleared
// after enqueue. Dispatch treats it as a per-account skip, never a
// fan-out abort.
var ErrStaleCredential = errors.New("credential cleared")

// Registry is the single source of truth for per-chat account state.
//
// All mutations happen under one mutex, so a check-then-write pair like
// OpenPosition can never interleave with another dispatch for the same
// token. That atomicity is what keeps duplicate positions out.
type Registry struct {
	mu       sync.RWMutex
	accounts map[int64]*models.Account
}

func New() *Registry {
	return &Registry{accounts: make(map[int64]*models.Account)}
}

// Get returns a copy of the account record.
// The copy keeps callers from mutating shared state outside the lock.
func (r *Registry) Get(id int64) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return cloneAccount(a), nil
}

// GetOrCreate returns the account for id, creating a default record on
// first contact. New accounts start disconnected with stock settings.
func (r *Registry) GetOrCreate(id int64) models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		a = &models.Account{
			ID:               id,
			TargetMultiplier: models.DefaultTargetMultiplier,
			BuyAmount:        models.DefaultBuyAmount,
		}
		r.accounts[id] = a
	}
	return cloneAccount(a)
}

// SetCredential binds a signing credential and marks the account connected.
func (r *Registry) SetCredential(id int64, handle, walletAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.ensureLocked(id)
	a.CredentialHandle = handle
	a.WalletAddress = walletAddress
	a.Connected = true
}

// ClearCredential forgets the credential and cached balance display.
// Open positions survive a disconnect: the user can still sell them
// back manually after reconnecting.
func (r *Registry) ClearCredential(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return
	}
	a.Connected = false
	a.CredentialHandle = ""
	a.WalletAddress = ""
	a.BalanceText = ""
}

// Credential returns the bound credential handle, or an error if the
// account disconnected since it was last seen. Dispatch uses this to
// detect credentials that went stale after enqueue.
func (r *Registry) Credential(id int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !a.Connected || a.CredentialHandle == "" {
		return "", fmt.Errorf("%w: account %d", ErrStaleCredential, id)
	}
	return a.CredentialHandle, nil
}

// SetTargetMultiplier updates the take-profit setting. Existing open
// positions keep the multiplier they were acquired with.
func (r *Registry) SetTargetMultiplier(id int64, m decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(id).TargetMultiplier = m
}

// SetBuyAmount updates the per-buy stake.
func (r *Registry) SetBuyAmount(id int64, amt decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(id).BuyAmount = amt
}

// SetBalanceText caches the display balance shown on the menu.
func (r *Registry) SetBalanceText(id int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.BalanceText = text
	}
}

// OpenPosition appends a position unless one already exists for the
// token. It reports whether a new position was opened; a false return
// means the account already held the token and nothing changed.
//
// Check and append happen under one lock hold. Two buy signals for the
// same token can therefore never both open.
func (r *Registry) OpenPosition(id int64, tokenAddress string, amount, targetMultiplier decimal.Decimal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return false
	}
	if a.HasOpenPosition(tokenAddress) {
		return false
	}
	a.OpenPositions = append(a.OpenPositions, models.Position{
		TokenAddress:     tokenAddress,
		Amount:           amount,
		TargetMultiplier: targetMultiplier,
		AcquiredAt:       time.Now(),
	})
	return true
}

// ClosePosition removes the open position for the token, if any, and
// files it into the hit or loss history chosen by reason. It reports
// whether a position was actually closed, tolerating duplicate sell
// signals as no-ops.
func (r *Registry) ClosePosition(id int64, tokenAddress string, reason models.CloseReason) (models.ClosedPosition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return models.ClosedPosition{}, false
	}
	for i, p := range a.OpenPositions {
		if p.TokenAddress != tokenAddress {
			continue
		}
		a.OpenPositions = append(a.OpenPositions[:i], a.OpenPositions[i+1:]...)
		closed := models.ClosedPosition{Position: p, ClosedAt: time.Now(), Reason: reason}
		if reason.IsLoss() {
			a.ClosedLosses = append(a.ClosedLosses, closed)
		} else {
			a.ClosedHits = append(a.ClosedHits, closed)
		}
		return closed, true
	}
	return models.ClosedPosition{}, false
}

// ensureLocked fetches or creates the record. Caller holds the write lock.
func (r *Registry) ensureLocked(id int64) *models.Account {
	a, ok := r.accounts[id]
	if !ok {
		a = &models.Account{
			ID:               id,
			TargetMultiplier: models.DefaultTargetMultiplier,
			BuyAmount:        models.DefaultBuyAmount,
		}
		r.accounts[id] = a
	}
	return a
}

func cloneAccount(a *models.Account) models.Account {
	c := *a
	c.OpenPositions = append([]models.Position(nil), a.OpenPositions...)
	c.ClosedHits = append([]models.ClosedPosition(nil), a.ClosedHits...)
	c.ClosedLosses = append([]models.ClosedPosition(nil), a.ClosedLosses...)
	return c
}
