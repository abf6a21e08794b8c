package inference

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/storage"
)

// Ledger tracks enrichment spend for the current billing period against a
// monthly threshold. Rollover to a new period is lazy: it happens on the
// next access after the wall-clock month changes, not on a schedule.
//
// The check-then-spend sequence in the enhancer races if two cycles
// overlap, so every read and mutation is serialized behind one mutex. The
// ledger is injected, never global, so tests get isolated instances.
type Ledger struct {
	mu        sync.Mutex
	threshold float64
	period    string
	spent     float64
	disabled  bool

	store  storage.Store // optional durable snapshot, may be nil
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a spend ledger. When store is non-nil, the current
// period's spend is restored from it and every recorded cost is snapshot
// back, so a restart mid-month does not forget money already spent.
func NewLedger(thresholdUSD float64, store storage.Store, logger *slog.Logger) *Ledger {
	l := &Ledger{
		threshold: thresholdUSD,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	l.period = model.Period(l.now())
	l.restore()
	return l
}

func (l *Ledger) restore() {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := l.store.LedgerSnapshot(ctx, l.period)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		l.logger.Warn("ledger snapshot restore failed", "period", l.period, "error", err)
		return
	}
	l.spent = snap.SpentUSD
}

// rolloverLocked resets spend when the wall-clock period has moved past
// the stored one. Callers hold l.mu.
func (l *Ledger) rolloverLocked() {
	current := model.Period(l.now())
	if current == l.period {
		return
	}
	l.logger.Info("ledger period rollover", "from", l.period, "to", current, "spent", l.spent)
	l.period = current
	l.spent = 0
	l.disabled = false
}

// Exhausted reports whether the period's spend has met the threshold.
// Once exhausted, the ledger stays disabled for the remainder of the
// period even if the threshold is later raised.
func (l *Ledger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	if roundCost(l.spent) >= roundCost(l.threshold) {
		l.disabled = true
	}
	return l.disabled
}

// Remaining returns the unspent budget for the current period.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	remaining := roundCost(l.threshold - l.spent)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Spent returns the period's accumulated spend.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	return roundCost(l.spent)
}

// Utilization returns spend as a fraction of the threshold, clamped to
// [0, 1].
func (l *Ledger) Utilization() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	if l.threshold <= 0 {
		return 1
	}
	u := l.spent / l.threshold
	if u > 1 {
		return 1
	}
	return u
}

// Record adds a completed call's actual cost to the period's spend and
// best-effort persists the snapshot. Persistence failures are logged, not
// propagated; the in-memory ledger remains authoritative for gating.
func (l *Ledger) Record(ctx context.Context, amountUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	l.spent = roundCost(l.spent + amountUSD)

	if l.store == nil {
		return
	}
	snap := &model.LedgerSnapshot{Period: l.period, SpentUSD: l.spent}
	if err := l.store.SaveLedgerSnapshot(ctx, snap); err != nil {
		l.logger.Warn("ledger snapshot save failed", "period", l.period, "error", err)
	}
}

// Period returns the ledger's current billing-period identifier.
func (l *Ledger) Period() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	return l.period
}

// SetClock overrides the wall clock. Tests only.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
