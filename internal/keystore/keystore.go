// Package keystore issues and validates API keys. It replaces a
// process-global key table with an injected store so callers choose the
// backing (in-memory for tests and single instances, Redis for shared
// deployments).
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned when a key is unknown, revoked or malformed.
var ErrInvalidKey = errors.New("keystore: invalid API key")

// KeyInfo is the metadata kept per issued key. The raw key itself is only
// returned once, at issue time.
type KeyInfo struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Store issues, validates and revokes API keys.
type Store interface {
	Issue(ctx context.Context, user string) (string, error)
	Validate(ctx context.Context, key string) (KeyInfo, error)
	List(ctx context.Context) ([]KeyInfo, error)
	Revoke(ctx context.Context, key string) error
}

// generateKey builds a key in the form sk-<16 hex chars>-<user>.
func generateKey(user string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", errors.New("keystore: user is required")
	}
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("keystore: failed to generate key: %w", err)
	}
	nonce := uuid.NewString()[:8]
	sum := sha256.Sum256([]byte(user + hex.EncodeToString(random) + nonce))
	return fmt.Sprintf("sk-%s-%s", hex.EncodeToString(sum[:])[:16], user), nil
}

// splitKey extracts the id and user portions of a key.
func splitKey(key string) (id, user string, err error) {
	if !strings.HasPrefix(key, "sk-") {
		return "", "", ErrInvalidKey
	}
	rest := strings.TrimPrefix(key, "sk-")
	parts := strings.SplitN(rest, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 16 || parts[1] == "" {
		return "", "", ErrInvalidKey
	}
	return parts[0], parts[1], nil
}
