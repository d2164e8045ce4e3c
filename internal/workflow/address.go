package workflow

import "github.com/ethereum/go-ethereum/common"

// sameHexAddress compares two hex addresses case-insensitively after
// checksum normalization.
func sameHexAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
