package risk

import (
	"log"
	"sync"
	"time"
)

// Manager is the single admission authority. Every open-position attempt
// passes through Admit before any order is placed, so slot and budget checks
// are serialized under one lock: two concurrent candidates can never both
// claim the last slot.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	held   map[string]bool // tickers with a live reservation or open position
	spent  float64
	day    string
	halted bool
	now    func() time.Time
}

// NewManager creates an admission manager. Zero-value limits fall back to
// defaults.
func NewManager(limits Limits) *Manager {
	def := DefaultLimits()
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = def.MaxConcurrent
	}
	if limits.DailyBudget <= 0 {
		limits.DailyBudget = def.DailyBudget
	}
	if limits.PositionSize <= 0 {
		limits.PositionSize = def.PositionSize
	}
	if limits.StopLossPct == 0 {
		limits.StopLossPct = def.StopLossPct
	}
	if limits.TakeProfitPct == 0 {
		limits.TakeProfitPct = def.TakeProfitPct
	}
	return &Manager{
		limits: limits,
		held:   make(map[string]bool),
		now:    time.Now,
	}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// Admit reserves one position slot and amount of daily budget for ticker.
// Checks and reservation happen atomically; on error nothing is reserved.
func (m *Manager) Admit(ticker string, amount float64) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDayLocked()

	if m.halted {
		return Reservation{}, ErrHalted
	}
	if m.held[ticker] {
		return Reservation{}, ErrTickerHeld
	}
	if len(m.held) >= m.limits.MaxConcurrent {
		return Reservation{}, ErrMaxPositions
	}
	if m.spent+amount > m.limits.DailyBudget {
		return Reservation{}, ErrBudgetExceeded
	}

	m.held[ticker] = true
	m.spent += amount
	return Reservation{Ticker: ticker, Amount: amount}, nil
}

// Refund returns unspent budget from a reservation, e.g. tranches that were
// never filled. The slot stays held until Release.
func (m *Manager) Refund(r Reservation, unspent float64) {
	if unspent <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if unspent > r.Amount {
		unspent = r.Amount
	}
	m.spent -= unspent
	if m.spent < 0 {
		m.spent = 0
	}
}

// Release frees the slot after the position closes. Spent budget is not
// returned; the day's budget counts money committed, not money recovered.
func (m *Manager) Release(ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, ticker)
}

// Halt blocks all new admissions until Resume. Used during emergency
// liquidation and broker outages.
func (m *Manager) Halt(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.halted {
		log.Printf("[RISK] trading halted: %s", reason)
	}
	m.halted = true
}

// Resume lifts a halt.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halted {
		log.Printf("[RISK] trading resumed")
	}
	m.halted = false
}

// Halted reports whether admissions are blocked.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// OpenCount returns the number of held slots.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// SpentToday returns budget committed since the last day rollover.
func (m *Manager) SpentToday() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.spent
}

// rollDayLocked resets the daily budget when the calendar date changes.
// Held slots survive the rollover; only spend resets.
func (m *Manager) rollDayLocked() {
	today := m.now().Format("2006-01-02")
	if m.day == today {
		return
	}
	if m.day != "" {
		log.Printf("[RISK] daily budget reset (%s -> %s, spent %.2f)", m.day, today, m.spent)
	}
	m.day = today
	m.spent = 0
}
