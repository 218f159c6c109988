package authflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingRequest records one in-flight authorization redirect. The state is
// echoed back by the provider on the callback and ties the callback to the
// nonce embedded in the ID token.
type PendingRequest struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewPendingRequest generates fresh state and nonce values. State and nonce
// are distinct so one cannot be replayed as the other.
func NewPendingRequest(ttl time.Duration) *PendingRequest {
	now := time.Now().UTC()
	return &PendingRequest{
		State:     "st-" + uuid.NewString(),
		Nonce:     "n-" + uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the request is past its TTL.
func (p *PendingRequest) Expired() bool {
	return time.Now().UTC().After(p.ExpiresAt)
}

// Store persists pending authorization requests between the redirect and the
// callback. Take consumes the record: a state can be redeemed at most once.
type Store interface {
	Put(ctx context.Context, p *PendingRequest) error
	// Take returns (nil, nil) when the state is unknown or expired.
	Take(ctx context.Context, state string) (*PendingRequest, error)
}

// MemoryStore keeps pending requests in-process. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]*PendingRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]*PendingRequest{}}
}

func (s *MemoryStore) Put(_ context.Context, p *PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// opportunistic sweep so abandoned logins don't accumulate
	for k, v := range s.m {
		if v.Expired() {
			delete(s.m, k)
		}
	}
	s.m[p.State] = p
	return nil
}

func (s *MemoryStore) Take(_ context.Context, state string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[state]
	if !ok {
		return nil, nil
	}
	delete(s.m, state)
	if p.Expired() {
		return nil, nil
	}
	return p, nil
}
