package profile

import (
	"context"
	"sync"
	"time"
)

// Repository defines the interface for profile storage.
//
// Get and Save are individually atomic, but a get-merge-save sequence is
// not: Save carries an optimistic version check and fails with
// ErrVersionConflict when the stored row moved underneath it.
// IncrementMessageCount is a single atomic operation that lazily creates
// the row, so a count bump can never be lost to a concurrent writer.
type Repository interface {
	// Get returns the stored profile or ErrProfileNotFound.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Save persists every field the merge engine owns. The write only
	// succeeds when the stored version matches p.Version; on success the
	// stored version advances and p is updated in place.
	Save(ctx context.Context, p *Profile) error
	// IncrementMessageCount atomically adds one to the user's message
	// count, stamping last_session_at, and returns the new count.
	IncrementMessageCount(ctx context.Context, userID string) (int, error)
}

// Deleter is implemented by repositories that support removing a user's
// profile. Deletion is admin teardown tooling, not an engine operation;
// profiles otherwise persist indefinitely.
type Deleter interface {
	Delete(ctx context.Context, userID string) error
}

// InMemoryRepository is an in-process implementation of Repository used
// in tests and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

// Get returns a copy of the stored profile.
func (r *InMemoryRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

// Save stores the profile under the optimistic version check. A profile
// with Version zero creates the row; otherwise the stored version must
// match.
func (r *InMemoryRepository) Save(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored, ok := r.profiles[p.UserID]
	if !ok {
		if p.Version != 0 {
			return ErrVersionConflict
		}
		created := p.Clone()
		created.Version = 1
		created.CreatedAt = now
		created.UpdatedAt = now
		r.profiles[p.UserID] = created
		*p = *created.Clone()
		return nil
	}

	if stored.Version != p.Version {
		return ErrVersionConflict
	}

	next := p.Clone()
	next.Version = stored.Version + 1
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = now
	// The increment operation owns the counter columns.
	next.MessageCount = stored.MessageCount
	next.LastSessionAt = clonePtr(stored.LastSessionAt)
	r.profiles[p.UserID] = next
	*p = *next.Clone()
	return nil
}

// IncrementMessageCount bumps the counter in one step, creating the row
// on first contact.
func (r *InMemoryRepository) IncrementMessageCount(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored, ok := r.profiles[userID]
	if !ok {
		p := NewProfile(userID)
		p.MessageCount = 1
		p.LastSessionAt = &now
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		r.profiles[userID] = p
		return 1, nil
	}

	stored.MessageCount++
	stored.LastSessionAt = &now
	stored.UpdatedAt = now
	stored.Version++
	return stored.MessageCount, nil
}

// Delete removes a user's profile.
func (r *InMemoryRepository) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, userID)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
var _ Deleter = (*InMemoryRepository)(nil)
