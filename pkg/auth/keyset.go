package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// KeySet signs tokens with its active key and resolves verification keys.
type KeySet interface {
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
	KeyFunc() jwt.Keyfunc
}

// MinSecretLength is the shortest shared secret accepted for HS256.
const MinSecretLength = 32

// HMACKeySet verifies HS256 tokens with a key derived from a shared secret.
type HMACKeySet struct {
	key []byte
}

// NewHMACKeySet derives the signing key from secret with HKDF-SHA256, so
// the configured secret is never used as a raw MAC key.
func NewHMACKeySet(secret []byte) (*HMACKeySet, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", MinSecretLength)
	}
	r := hkdf.New(sha256.New, secret, []byte("caseguard-jwt"), []byte("hs256"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	return &HMACKeySet{key: key}, nil
}

func (ks *HMACKeySet) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ks.key)
}

func (ks *HMACKeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ks.key, nil
	}
}

// maxKeys bounds how many rotated keys stay verifiable.
const maxKeys = 10

// Ed25519KeySet holds rotating EdDSA keys in memory.
type Ed25519KeySet struct {
	mu         sync.RWMutex
	currentKID string
	order      []string
	keys       map[string]ed25519.PrivateKey
}

func NewEd25519KeySet() (*Ed25519KeySet, error) {
	ks := &Ed25519KeySet{keys: make(map[string]ed25519.PrivateKey)}
	if err := ks.Rotate(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Rotate makes a fresh key active. Older keys keep verifying until evicted.
func (ks *Ed25519KeySet) Rotate() error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	kid := fmt.Sprintf("key-%d", time.Now().UnixNano())
	ks.keys[kid] = priv
	ks.order = append(ks.order, kid)
	ks.currentKID = kid

	for len(ks.order) > maxKeys {
		delete(ks.keys, ks.order[0])
		ks.order = ks.order[1:]
	}
	return nil
}

// PublicKey returns the active verification key.
func (ks *Ed25519KeySet) PublicKey() ed25519.PublicKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.keys[ks.currentKID].Public().(ed25519.PublicKey)
}

func (ks *Ed25519KeySet) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	ks.mu.RLock()
	key := ks.keys[ks.currentKID]
	kid := ks.currentKID
	ks.mu.RUnlock()

	if key == nil {
		return "", fmt.Errorf("no active key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

func (ks *Ed25519KeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in header")
		}

		ks.mu.RLock()
		defer ks.mu.RUnlock()
		key, exists := ks.keys[kid]
		if !exists {
			return nil, fmt.Errorf("key not found: %s", kid)
		}
		return key.Public(), nil
	}
}
