// Package selection holds fetched account lists while the user picks which
// accounts to link. Entries live for a few minutes and can be read once.
package selection

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/model"
)

// DefaultTTL is how long a fetched account list waits for a decision.
const DefaultTTL = 5 * time.Minute

// KeyPrefix namespaces selection keys.
const KeyPrefix = "enable_banking:accounts:"

// Cache stores pending selections.
type Cache interface {
	// Put stores the selection under a fresh unguessable key.
	Put(ctx context.Context, sel model.PendingSelection) (string, error)
	// TakeOnce returns and removes the selection. Missing and expired
	// entries both yield common.ErrSelectionExpired.
	TakeOnce(ctx context.Context, key string) (*model.PendingSelection, error)
}

// NewKey returns KeyPrefix followed by 20 random hex characters.
func NewKey() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate selection key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}
