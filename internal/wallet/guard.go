package wallet

import (
	"context"
	"sync/atomic"
)

// Guard wraps a Wallet and enforces a single outstanding SignMessage call.
// A second sign while one is in flight fails fast with ErrSigningBusy
// instead of queueing behind a prompt the holder may never answer.
type Guard struct {
	Wallet
	signing atomic.Bool
}

func NewGuard(w Wallet) *Guard {
	return &Guard{Wallet: w}
}

func (g *Guard) SignMessage(ctx context.Context, message string) (string, error) {
	if !g.signing.CompareAndSwap(false, true) {
		return "", ErrSigningBusy
	}
	defer g.signing.Store(false)
	return g.Wallet.SignMessage(ctx, message)
}
