package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"site-server/internal/chat"
)

// SessionStore keeps the live chat sessions in memory. The least recently
// used session is dropped once the limit is reached; nothing is persisted.
type SessionStore struct {
	mu      sync.Mutex
	cache   *lru.Cache
	factory func(id string) *chat.Session
}

func NewSessionStore(maxSessions int, factory func(id string) *chat.Session) (*SessionStore, error) {
	cache, err := lru.New(maxSessions)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &SessionStore{cache: cache, factory: factory}, nil
}

// GetOrCreate returns the session for id, creating it on first use.
func (m *SessionStore) GetOrCreate(id string) (*chat.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(id); ok {
		return v.(*chat.Session), false
	}
	s := m.factory(id)
	m.cache.Add(id, s)
	return s, true
}

func (m *SessionStore) get(id string) (*chat.Session, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*chat.Session), true
}

// Delete tears the session down. Replies already scheduled still post to the
// detached session object.
func (m *SessionStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Remove(id)
}

func (m *SessionStore) Len() int {
	return m.cache.Len()
}

// PriceRecord remembers which provider-side product and price back a
// plan/billing-cycle pair.
type PriceRecord struct {
	PlanID       string    `json:"plan_id"`
	BillingCycle string    `json:"billing_cycle"`
	ProductID    string    `json:"product_id"`
	PriceID      string    `json:"price_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func priceKey(planID, billingCycle string) string {
	return planID + "/" + billingCycle
}

// MemoryPriceCache is the default price record cache; it lives as long as
// the process.
type MemoryPriceCache struct {
	mu      sync.RWMutex
	records map[string]PriceRecord
}

func NewMemoryPriceCache() *MemoryPriceCache {
	return &MemoryPriceCache{records: make(map[string]PriceRecord)}
}

func (m *MemoryPriceCache) GetPrice(_ context.Context, planID, billingCycle string) (*PriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[priceKey(planID, billingCycle)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryPriceCache) SavePrice(_ context.Context, rec PriceRecord) error {
	if rec.PlanID == "" || rec.BillingCycle == "" || rec.PriceID == "" {
		return fmt.Errorf("plan_id, billing_cycle, and price_id are required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[priceKey(rec.PlanID, rec.BillingCycle)] = rec
	return nil
}

func (m *MemoryPriceCache) DeletePrice(_ context.Context, planID, billingCycle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, priceKey(planID, billingCycle))
	return nil
}
