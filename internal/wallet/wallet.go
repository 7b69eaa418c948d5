// Package wallet handles credential import and balance display for
// connected accounts.
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var lamportsPerSol = decimal.NewFromInt(1_000_000_000)

// Credential is a validated signing key plus its derived address.
// Handle is the raw base58 secret passed straight through to the
// executor scripts; it never appears in logs or chat output.
type Credential struct {
	Handle  string
	Address string
}

// ParseKey validates a pasted base58 private key and derives the
// public address. The error is safe to show to the user.
func ParseKey(base58Key string) (Credential, error) {
	pk, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return Credential{}, fmt.Errorf("invalid private key")
	}
	return Credential{
		Handle:  base58Key,
		Address: pk.PublicKey().String(),
	}, nil
}

// ShortAddress renders an address for chat display: first and last six
// characters with an ellipsis, same shape users see on explorers.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}

// BalanceFetcher reads live SOL balances over RPC.
type BalanceFetcher struct {
	client  *rpc.Client
	usdRate decimal.Decimal
}

func NewBalanceFetcher(rpcURL string, usdRate decimal.Decimal) *BalanceFetcher {
	return &BalanceFetcher{
		client:  rpc.New(rpcURL),
		usdRate: usdRate,
	}
}

// BalanceText returns the combined SOL and USD display line used on
// the menu, e.g. "1.2345 SOL | $165.32".
func (b *BalanceFetcher) BalanceText(ctx context.Context, address string) (string, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("bad wallet address: %w", err)
	}

	out, err := b.client.GetBalance(ctx, pub, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("balance fetch: %w", err)
	}

	sol := decimal.NewFromInt(int64(out.Value)).Div(lamportsPerSol)
	usd := sol.Mul(b.usdRate)
	return fmt.Sprintf("%s SOL | $%s", sol.StringFixed(4), usd.StringFixed(2)), nil
}
