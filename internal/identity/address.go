// Package identity owns principals: wallet addresses normalized to their
// EIP-55 checksum form, the signed-challenge wallet login, and the session
// tokens issued after it. Every service call receives the principal
// explicitly; nothing here keeps a "current wallet".
package identity

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for anything that is not a 20-byte hex
// address.
var ErrInvalidAddress = errors.New("invalid wallet address")

// ZeroAddress is the all-zero address, used as the default platform payee.
var ZeroAddress = common.Address{}.Hex()

// Normalize returns the checksummed form of s. Case and an optional 0x
// prefix are ignored on input.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(s).Hex(), nil
}

// Same reports whether a and b name the same principal.
func Same(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// AddressSet is a set of normalized addresses (e.g. moderators). Entries
// that fail to normalize are skipped.
type AddressSet map[string]struct{}

// NewAddressSet builds a set from raw strings.
func NewAddressSet(raw []string) AddressSet {
	set := make(AddressSet, len(raw))
	for _, r := range raw {
		if a, err := Normalize(r); err == nil {
			set[a] = struct{}{}
		}
	}
	return set
}

// Has reports whether addr is in the set.
func (s AddressSet) Has(addr string) bool {
	a, err := Normalize(addr)
	if err != nil {
		return false
	}
	_, ok := s[a]
	return ok
}
