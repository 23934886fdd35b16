package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "rapidcare-auth",
		Audience:      "rapidcare-client",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := newTestManager(t, time.Minute)

	token, err := m.CreateAccess("acct-1", "PATIENT", "ACTIVE")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "acct-1" || claims.Role != "PATIENT" || claims.Status != "ACTIVE" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt == nil {
		t.Fatal("expected issued-at claim to be set")
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, time.Minute)

	claims := AccessClaims{UID: "acct-1", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		Issuer:    "rapidcare-auth",
		Audience:  gjwt.ClaimStrings{"rapidcare-client"},
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessRejectsWrongKey(t *testing.T) {
	m := newTestManager(t, time.Minute)
	other := newTestManager(t, time.Minute)

	token, err := other.CreateAccess("acct-1", "PATIENT", "ACTIVE")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	_, err = m.ParseAccess(token)
	if !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestParseAccessExpired(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "acct-1", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	token, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = m.ParseAccess(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessRejectsGarbage(t *testing.T) {
	m := newTestManager(t, time.Minute)

	_, err := m.ParseAccess("definitely-not-a-jwt")
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestParseAccessRejectsWrongIssuerAndAudience(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "rapidcare-auth",
		Audience:      "rapidcare-client",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	wrong := AccessClaims{UID: "acct-1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "someone-else",
		Audience:  gjwt.ClaimStrings{"rapidcare-client"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrong)
	token, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	pub, _ := newEdKeys(t)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodEd25519, PublicKey: pub}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 without public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rsa"}},
		{"excessive leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config validation error")
			}
		})
	}
}
