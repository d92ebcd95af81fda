// Package storage talks to the content-addressed storage collaborator: it
// pins uploads through the Pinata API, resolves CIDs to gateway URLs and
// fetches gated objects for the stream proxy. The registry never inspects
// file contents; it only stores and discloses handles.
package storage

import (
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// multihash prefix for sha2-256 with a 32-byte digest.
	mhSha256   = 0x12
	mhSha256Sz = 0x20

	base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"
)

// ValidCID reports whether s looks like an IPFS CID: a base58btc CIDv0
// (Qm..., a 34-byte sha2-256 multihash) or a base32 CIDv1 ("b" multibase
// prefix, lower-case RFC 4648 alphabet).
func ValidCID(s string) bool {
	switch {
	case strings.HasPrefix(s, "Qm") && len(s) == 46:
		raw, err := base58.Decode(s)
		return err == nil && len(raw) == 34 && raw[0] == mhSha256 && raw[1] == mhSha256Sz
	case strings.HasPrefix(s, "b") && len(s) >= 50 && len(s) <= 120:
		for _, r := range s[1:] {
			if !strings.ContainsRune(base32Alphabet, r) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ParseHandle accepts a bare CID or an ipfs:// handle and returns the CID.
func ParseHandle(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "ipfs://")
	s = strings.TrimPrefix(s, "/ipfs/")
	if ValidCID(s) {
		return s, true
	}
	return "", false
}
