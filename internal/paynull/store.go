package paynull

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store keeps payment intents. Implementations must be safe for concurrent use
// and must apply Update atomically.
type Store interface {
	Create(ctx context.Context, pi *PaymentIntent) error
	Get(ctx context.Context, id string) (*PaymentIntent, error)
	// Update loads the intent, applies fn and saves the result unless fn fails.
	Update(ctx context.Context, id string, fn func(pi *PaymentIntent) error) (*PaymentIntent, error)
	// List returns stored intents, newest first.
	List(ctx context.Context) ([]*PaymentIntent, error)
}

// LRUStore is a bounded in-memory Store. An intent expires ttl after its
// last change; when full the least recently used intent is evicted.
type LRUStore struct {
	// mu serializes read-modify-write in Update; the LRU locks itself otherwise.
	mu    sync.Mutex
	cache *expirable.LRU[string, PaymentIntent]
}

// NewLRUStore creates a store holding at most size intents.
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{cache: expirable.NewLRU[string, PaymentIntent](size, nil, ttl)}
}

func (s *LRUStore) Create(_ context.Context, pi *PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.Contains(pi.ID) {
		return fmt.Errorf("create payment intent: duplicate id %s", pi.ID)
	}
	s.cache.Add(pi.ID, *pi)
	return nil
}

func (s *LRUStore) Get(_ context.Context, id string) (*PaymentIntent, error) {
	pi, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &pi, nil
}

func (s *LRUStore) Update(_ context.Context, id string, fn func(pi *PaymentIntent) error) (*PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(&pi); err != nil {
		return nil, err
	}
	s.cache.Add(id, pi)
	return &pi, nil
}

func (s *LRUStore) List(_ context.Context) ([]*PaymentIntent, error) {
	values := s.cache.Values()
	result := make([]*PaymentIntent, 0, len(values))
	for i := range values {
		result = append(result, &values[i])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
