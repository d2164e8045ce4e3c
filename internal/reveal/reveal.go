// Package reveal implements the disclosure policy: what an approved verifier
// ultimately sees. Reveal mode grants plaintext for a bounded window;
// no-reveal mode answers only whether a guessed value opens the commitment.
package reveal

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"askme/internal/commitment"
	dErrors "askme/pkg/domain-errors"
)

// Window bounds how long a reveal-mode disclosure stays retrievable.
// Enforced server-side; the holder stamps the same bound locally so display
// and audit agree.
const Window = time.Hour

// Mode selects the disclosure branch at approval time.
type Mode string

const (
	ModeReveal   Mode = "reveal"
	ModeNoReveal Mode = "no-reveal"
)

// ParseMode validates external input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReveal, ModeNoReveal:
		return Mode(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "reveal mode must be \"reveal\" or \"no-reveal\"")
	}
}

// ExpiryFor returns the reveal-window deadline for an approval time.
func ExpiryFor(approvedAt time.Time) time.Time {
	return approvedAt.Add(Window)
}

// Match is the no-reveal commitment opening: it reports whether the guess
// hashes to the stored value hash. The guess is normalized first, so the
// check tolerates the same cosmetic variation the commitment did. Comparison
// happens over fixed-width digest bytes in constant time.
func Match(guess, storedValueHash string) bool {
	guessDigest, ok := decodeHash(commitment.ValueHash(guess))
	if !ok {
		return false
	}
	storedDigest, ok := decodeHash(storedValueHash)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(guessDigest, storedDigest) == 1
}

// decodeHash parses a 0x-prefixed 32-byte hex digest.
func decodeHash(h string) ([]byte, bool) {
	h = strings.TrimPrefix(h, "0x")
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) != 32 {
		return nil, false
	}
	return raw, true
}
