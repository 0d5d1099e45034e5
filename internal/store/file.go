package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePriceCache persists price records as a JSON document on disk so a
// restart does not have to search the provider again.
type FilePriceCache struct {
	mu   sync.Mutex
	path string
}

func NewFilePriceCache(path string) *FilePriceCache {
	return &FilePriceCache{path: path}
}

func (f *FilePriceCache) GetPrice(_ context.Context, planID, billingCycle string) (*PriceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	rec, ok := records[priceKey(planID, billingCycle)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *FilePriceCache) SavePrice(_ context.Context, rec PriceRecord) error {
	if rec.PlanID == "" || rec.BillingCycle == "" || rec.PriceID == "" {
		return fmt.Errorf("plan_id, billing_cycle, and price_id are required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readLocked()
	if err != nil {
		return err
	}
	records[priceKey(rec.PlanID, rec.BillingCycle)] = rec
	return f.writeLocked(records)
}

func (f *FilePriceCache) DeletePrice(_ context.Context, planID, billingCycle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readLocked()
	if err != nil {
		return err
	}
	delete(records, priceKey(planID, billingCycle))
	return f.writeLocked(records)
}

func (f *FilePriceCache) readLocked() (map[string]PriceRecord, error) {
	records := make(map[string]PriceRecord)
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return records, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode price cache %s: %w", f.path, err)
	}
	return records, nil
}

func (f *FilePriceCache) writeLocked(records map[string]PriceRecord) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
