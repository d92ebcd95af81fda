package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Challenge errors.
var (
	// ErrNoChallenge means no live nonce exists for the address: never
	// issued, expired, evicted or already consumed.
	ErrNoChallenge = errors.New("no pending challenge")

	// ErrBadSignature means the signature is malformed or was produced by a
	// different key.
	ErrBadSignature = errors.New("signature does not match address")
)

// Challenge is the message a wallet must personal_sign to log in.
type Challenge struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Challenges issues single-use login nonces and verifies EIP-191 signatures
// over them. Pending nonces live in an expirable LRU, so an abandoned login
// costs at most one entry until the TTL elapses.
type Challenges struct {
	// mu makes check-and-consume in Verify atomic against Issue and other
	// verifications of the same address.
	mu      sync.Mutex
	pending *expirable.LRU[string, Challenge]
	ttl     time.Duration
	domain  string
	now     func() time.Time
}

// NewChallenges creates a store holding at most size pending challenges for
// ttl each. domain is embedded in the signed message.
func NewChallenges(size int, ttl time.Duration, domain string) *Challenges {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Challenges{
		pending: expirable.NewLRU[string, Challenge](size, nil, ttl),
		ttl:     ttl,
		domain:  domain,
		now:     time.Now,
	}
}

// Issue creates (or replaces) the pending challenge for address.
func (c *Challenges) Issue(address string) (Challenge, error) {
	addr, err := Normalize(address)
	if err != nil {
		return Challenge{}, err
	}
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Challenge{}, err
	}
	now := c.now().UTC()
	ch := Challenge{
		Address: addr,
		Message: fmt.Sprintf("%s wants you to sign in with your wallet:\n%s\n\nNonce: %s\nIssued At: %s",
			c.domain, addr, hex.EncodeToString(nonce[:]), now.Format(time.RFC3339)),
		ExpiresAt: now.Add(c.ttl),
	}
	c.mu.Lock()
	c.pending.Add(addr, ch)
	c.mu.Unlock()
	return ch, nil
}

// Verify checks that signature is address's personal_sign over its pending
// challenge and consumes the challenge. It returns the normalized address.
// A wrong signature leaves the challenge pending, so a third party who knows
// the address cannot cancel the owner's login.
func (c *Challenges) Verify(address, signature string) (string, error) {
	addr, err := Normalize(address)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending.Peek(addr)
	if !ok {
		return "", ErrNoChallenge
	}
	signer, err := RecoverSigner(ch.Message, signature)
	if err != nil {
		return "", err
	}
	if signer != addr {
		return "", ErrBadSignature
	}
	// Expiry can race the lookup; only the caller that removes the entry wins.
	if !c.pending.Remove(addr) {
		return "", ErrNoChallenge
	}
	return addr, nil
}

// Pending reports how many challenges are outstanding.
func (c *Challenges) Pending() int { return c.pending.Len() }

// RecoverSigner returns the checksummed address that produced an EIP-191
// personal_sign signature (65 bytes, 0x-hex) over message. Both the 0/1 and
// 27/28 recovery id conventions are accepted.
func RecoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
