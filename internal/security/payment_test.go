package security

import (
	"testing"
	"time"
)

var paymentSecret = []byte("payment-signing-secret")

func TestPaymentTokenizer_MintValidate(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	token := tokenizer.Mint("user-123", now)

	if token.ExpiresAt.Sub(token.IssuedAt) != 15*time.Minute {
		t.Errorf("expiry window = %v, want 15m", token.ExpiresAt.Sub(token.IssuedAt))
	}

	if !tokenizer.Validate(token.Value, "user-123", token.IssuedAt, token.ExpiresAt, now) {
		t.Error("Validate() rejected a freshly minted token at mint time")
	}
}

func TestPaymentTokenizer_Validate_Expired(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	token := tokenizer.Mint("user-123", now)

	// One millisecond past expiry is already too late: no grace period.
	late := token.ExpiresAt.Add(time.Millisecond)
	if tokenizer.Validate(token.Value, "user-123", token.IssuedAt, token.ExpiresAt, late) {
		t.Error("Validate() accepted a token past its expiry")
	}

	// The instant of expiry itself is still acceptable.
	if !tokenizer.Validate(token.Value, "user-123", token.IssuedAt, token.ExpiresAt, token.ExpiresAt) {
		t.Error("Validate() rejected a token exactly at expiry")
	}
}

func TestPaymentTokenizer_Validate_WrongUser(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Now()

	token := tokenizer.Mint("user-123", now)

	if tokenizer.Validate(token.Value, "user-456", token.IssuedAt, token.ExpiresAt, now) {
		t.Error("Validate() accepted a token for a different user")
	}
}

func TestPaymentTokenizer_Validate_ForgedWindow(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Now()

	token := tokenizer.Mint("user-123", now)

	// Stretching the expiry invalidates the signature rather than extending
	// the token's life.
	stretched := token.ExpiresAt.Add(time.Hour)
	if tokenizer.Validate(token.Value, "user-123", token.IssuedAt, stretched, now) {
		t.Error("Validate() accepted a token with a forged expiry")
	}
}

func TestPaymentTokenizer_Validate_EmptyValue(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Now()

	if tokenizer.Validate("", "user-123", now, now.Add(time.Minute), now) {
		t.Error("Validate() accepted an empty token value")
	}
}

func TestPaymentTokenizer_Validate_WrongSecret(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	other := NewPaymentTokenizer([]byte("attacker-guess"), 15*time.Minute)
	now := time.Now()

	forged := other.Mint("user-123", now)

	if tokenizer.Validate(forged.Value, "user-123", forged.IssuedAt, forged.ExpiresAt, now) {
		t.Error("Validate() accepted a token minted without the real secret")
	}
}

func TestPaymentTokenizer_DefaultTTL(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 0)
	now := time.Now()

	token := tokenizer.Mint("user-123", now)
	if got := token.ExpiresAt.Sub(token.IssuedAt); got != DefaultPaymentTokenTTL {
		t.Errorf("default expiry window = %v, want %v", got, DefaultPaymentTokenTTL)
	}
}

func TestPaymentTokenizer_MintIsDeterministicPerWindow(t *testing.T) {
	tokenizer := NewPaymentTokenizer(paymentSecret, 15*time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	first := tokenizer.Mint("user-123", now)
	second := tokenizer.Mint("user-123", now.Add(time.Second))

	if first.Value == second.Value {
		t.Error("Mint() produced identical tokens for different issue times")
	}
}
