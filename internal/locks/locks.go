package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultMemberLockTTL = 2 * time.Minute

// ErrLocked is returned when the key is already held by another owner.
var ErrLocked = errors.New("lock already held")

// Store defines the Redis operations the lock manager uses.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	MemberLockKey(memberID string) string
}

// Manager hands out short-lived per-member mutexes backed by Redis SETNX.
// Activation and grace sweeps for one member must never run concurrently;
// the TTL only exists so a crashed holder cannot wedge the member forever.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager builds a lock manager.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("redis store required for lock manager")
	}
	if ttl <= 0 {
		ttl = defaultMemberLockTTL
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// WithMemberLock runs fn while holding the member's lock. When the lock is
// already held it returns ErrLocked without invoking fn.
func (m *Manager) WithMemberLock(ctx context.Context, memberID uuid.UUID, fn func(ctx context.Context) error) error {
	key := m.store.MemberLockKey(memberID.String())
	owner := uuid.NewString()

	ok, err := m.store.SetNX(ctx, key, owner, m.ttl)
	if err != nil {
		return fmt.Errorf("acquire member lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer m.release(ctx, key, owner)

	return fn(ctx)
}

// release frees the lock only while the owner value still matches, so an
// expired-and-reacquired lock is never deleted out from under its new holder.
// The compare and the delete run as one Redis script.
func (m *Manager) release(ctx context.Context, key, owner string) {
	_, _ = m.store.CompareAndDelete(ctx, key, owner)
}
