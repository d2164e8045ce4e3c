package workflow

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	dErrors "askme/pkg/domain-errors"
)

// RecoverSigner recovers the address that produced an EIP-191 personal-sign
// signature over message. This is the authoritative ownership check; the
// holder's local address comparison is only a fast-fail.
func RecoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "signature is not valid hex")
	}
	if len(sig) != crypto.SignatureLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "signature must be 65 bytes")
	}

	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", dErrors.New(dErrors.CodeVerificationFailed, "signature does not recover a public key")
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
