package accessurl

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSigner_RoundTrip(t *testing.T) {
	s, err := NewSigner("k", time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	tok, g, err := s.Sign("0xAbC", 42)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if g.ID == "" || g.ContentID != 42 || g.Principal != "0xAbC" {
		t.Fatalf("unexpected grant: %+v", g)
	}

	got, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != g.ID || got.ContentID != 42 || got.Principal != "0xAbC" {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, g)
	}
	if !got.ExpiresAt.Equal(g.ExpiresAt.Truncate(time.Second)) {
		t.Fatalf("expiry mismatch: %v vs %v", got.ExpiresAt, g.ExpiresAt)
	}
}

func TestSigner_RejectsExpired(t *testing.T) {
	s, _ := NewSigner("k", time.Minute)
	tok, _, err := s.Sign("0xA", 1)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant for expired token, got %v", err)
	}
}

func TestSigner_RejectsTamperingAndForeignKeys(t *testing.T) {
	s, _ := NewSigner("k", time.Minute)
	tok, _, _ := s.Sign("0xA", 1)

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWS, got %q", tok)
	}
	// Flip a byte in the signature.
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	bad := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant for tampered token, got %v", err)
	}

	other, _ := NewSigner("other", time.Minute)
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant for foreign key, got %v", err)
	}
	if _, err := s.Verify("garbage"); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant for garbage, got %v", err)
	}
}

func TestNewSigner_Defaults(t *testing.T) {
	if _, err := NewSigner("", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	s, err := NewSigner("k", 0)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.TTL() != 5*time.Minute {
		t.Fatalf("expected default TTL 5m, got %v", s.TTL())
	}
}
