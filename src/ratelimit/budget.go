package ratelimit

import (
	"sort"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/shopspring/decimal"
)

// share of the daily budget after which a warning is logged once per day
var budgetWarningShare = decimal.NewFromFloat(0.8)

// -----------------------------------------------------------------------------
// BudgetTracker manages API spend with a daily (UTC) reset.
// -----------------------------------------------------------------------------

type budget struct {
	cost   decimal.Decimal
	limit  decimal.Decimal // zero means no ceiling
	spent  decimal.Decimal
	day    time.Time
	warned bool
}

type BudgetTracker struct {
	budgets map[string]*budget
	Logger  *logger.Logger
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewBudgetTracker(l *logger.Logger) *BudgetTracker {
	return &BudgetTracker{
		budgets: make(map[string]*budget),
		Logger:  l,
	}
}

// -----------------------------------------------------------------------------

// Register sets cost and ceiling of a provider, keeping today's spend if already known.
func (bt *BudgetTracker) Register(cfg models.MProviderConfig) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	cost := decimal.NewFromFloat(cfg.CostPerRequest)
	limit := decimal.NewFromFloat(cfg.DailyBudget)
	if b, ok := bt.budgets[cfg.Name]; ok {
		b.cost, b.limit = cost, limit
		return
	}
	bt.budgets[cfg.Name] = &budget{cost: cost, limit: limit}
}

// -----------------------------------------------------------------------------

func (b *budget) roll(now time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(b.day) {
		b.day = day
		b.spent = decimal.Zero
		b.warned = false
	}
}

func (b *budget) canSpend() bool {
	if b.limit.IsZero() || b.cost.IsZero() {
		return true
	}
	return b.spent.Add(b.cost).LessThanOrEqual(b.limit)
}

// -----------------------------------------------------------------------------

// CanSpend reports whether one more request stays within today's budget.
func (bt *BudgetTracker) CanSpend(provider string, now time.Time) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	b, ok := bt.budgets[provider]
	if !ok {
		return true
	}
	b.roll(now)
	return b.canSpend()
}

// -----------------------------------------------------------------------------

// Record charges one request to the provider.
func (bt *BudgetTracker) Record(provider string, now time.Time) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	b, ok := bt.budgets[provider]
	if !ok || b.cost.IsZero() {
		return
	}
	b.roll(now)
	b.spent = b.spent.Add(b.cost)

	if b.limit.IsPositive() && !b.warned && b.spent.GreaterThanOrEqual(b.limit.Mul(budgetWarningShare)) {
		b.warned = true
		bt.Logger.Warning("Provider %s spent %s of its %s daily budget.", provider, b.spent.StringFixed(4), b.limit.StringFixed(4))
	}
}

// -----------------------------------------------------------------------------

// Spent returns today's spend for provider.
func (bt *BudgetTracker) Spent(provider string, now time.Time) decimal.Decimal {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	b, ok := bt.budgets[provider]
	if !ok {
		return decimal.Zero
	}
	b.roll(now)
	return b.spent
}

// -----------------------------------------------------------------------------

// Cost is the configured cost per request, used by the lowest_cost strategy.
func (bt *BudgetTracker) Cost(provider string) decimal.Decimal {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	if b, ok := bt.budgets[provider]; ok {
		return b.cost
	}
	return decimal.Zero
}

// -----------------------------------------------------------------------------

func (bt *BudgetTracker) Snapshot(now time.Time) []models.MBudgetSnapshot {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	out := make([]models.MBudgetSnapshot, 0, len(bt.budgets))
	for name, b := range bt.budgets {
		b.roll(now)
		remaining := ""
		if b.limit.IsPositive() {
			remaining = decimal.Max(b.limit.Sub(b.spent), decimal.Zero).String()
		}
		out = append(out, models.MBudgetSnapshot{
			Provider:       name,
			CostPerRequest: b.cost.String(),
			DailyBudget:    b.limit.String(),
			SpentToday:     b.spent.String(),
			Remaining:      remaining,
			Exhausted:      !b.canSpend(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
