package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
)

// Fingerprint hashes the salient fields of an evaluation: total, projected
// total, period, category count, and the top five categories by amount.
// Two evaluations with the same fingerprint are considered equivalent for
// enrichment purposes.
func Fingerprint(eval *model.CostEvaluation) string {
	type entry struct {
		name   string
		amount float64
	}
	entries := make([]entry, 0, len(eval.ServiceCosts))
	for name, amount := range eval.ServiceCosts {
		entries = append(entries, entry{name, amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > 5 {
		entries = entries[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%.2f|%.2f|%s|%d",
		eval.TotalCost, eval.ProjectedTotal,
		eval.PeriodStart.UTC().Format("2006-01-02"), len(eval.ServiceCosts))
	for _, e := range entries {
		fmt.Fprintf(&b, "|%s:%.2f", e.name, e.amount)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	insight  *model.Insight
	cachedAt time.Time
}

// Cache holds enrichment results keyed by evaluation fingerprint. An
// entry is valid only while it is younger than the TTL and its
// fingerprint still matches the current evaluation; eviction is lazy,
// performed on read, with no background sweeper.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an insight cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached insight for a fingerprint, evicting and missing
// when the entry has aged past the TTL.
func (c *Cache) Get(fingerprint string) (*model.Insight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return entry.insight, true
}

// Put stores an insight under a fingerprint.
func (c *Cache) Put(fingerprint string, insight *model.Insight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = cacheEntry{insight: insight, cachedAt: c.now()}
}

// SetClock overrides the wall clock. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
