package wallet

import (
	"context"
	"crypto/ecdsa"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	dErrors "askme/pkg/domain-errors"
)

// LocalWallet signs with an in-process secp256k1 key. It is a real signer
// (EIP-191 personal messages, recoverable signatures), used by the CLI and
// by end-to-end tests where an external wallet transport is unavailable.
type LocalWallet struct {
	mu        sync.Mutex
	key       *ecdsa.PrivateKey
	connected bool
}

// NewLocalWallet generates a fresh key.
func NewLocalWallet() (*LocalWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "generate wallet key", err)
	}
	return &LocalWallet{key: key}, nil
}

// NewLocalWalletFromHex loads a key from a 0x-prefixed or bare hex string.
func NewLocalWalletFromHex(hexKey string) (*LocalWallet, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidInput, "parse wallet key", err)
	}
	return &LocalWallet{key: key}, nil
}

func (w *LocalWallet) Connect(_ context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex(), nil
}

func (w *LocalWallet) Disconnect(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	return nil
}

func (w *LocalWallet) Address() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return ""
	}
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

func (w *LocalWallet) SignMessage(ctx context.Context, message string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return "", ErrNotConnected
	}
	select {
	case <-ctx.Done():
		return "", dErrors.Wrap(dErrors.CodeNetwork, "signing cancelled", ctx.Err())
	default:
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "sign message", err)
	}
	// Shift the recovery id into the 27/28 range used on the wire.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
