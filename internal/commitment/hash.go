// Package commitment implements the two-layer commitment hashing scheme.
//
// Layer one hashes the normalized raw value (the value hash); layer two
// scopes that hash to a field under a fixed domain-separation prefix (the
// field hash). Verifiers can check "does field F match commitment X" without
// learning whether a different field happens to hold the same value, and
// without ever seeing plaintext. The commitment is content-addressed: two
// holders with the same normalized value and field produce the same hashes.
package commitment

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// domainPrefix separates this protocol's field hashes from any other use of
// keccak256. The exact layout "VerifyENS:<field>:<valueHash>" is part of the
// wire contract; external verifiers re-derive it byte-for-byte.
const domainPrefix = "VerifyENS:"

// Normalize trims surrounding whitespace and lowercases the value so cosmetic
// variation does not change the commitment. Applied before every hash.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// keccak256 returns the 0x-prefixed hex digest of the legacy Keccak-256
// permutation (the Ethereum variant, not NIST SHA3-256).
func keccak256(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ValueHash computes keccak256(Normalize(value)), hex-encoded with a 0x
// prefix. Pure and deterministic.
func ValueHash(value string) string {
	return keccak256([]byte(Normalize(value)))
}

// FieldHash computes keccak256("VerifyENS:" + field + ":" + valueHash),
// scoping a value hash to a single field.
func FieldHash(field FieldType, valueHash string) string {
	return keccak256([]byte(domainPrefix + string(field) + ":" + valueHash))
}

// Compute derives both hashes for a field value in one step.
func Compute(field FieldType, value string) (valueHash, fieldHash string) {
	valueHash = ValueHash(value)
	fieldHash = FieldHash(field, valueHash)
	return valueHash, fieldHash
}
