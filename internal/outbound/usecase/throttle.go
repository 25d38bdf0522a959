package usecase

import (
	"math/rand"
	"sync"
	"time"
)

// ThrottleEntry is the in-memory pacing state of one sender account.
type ThrottleEntry struct {
	HourStart time.Time
	HourCount int
	DayStart  time.Time
	DayCount  int
	// NextSendAt is the earliest moment the sender may send again.
	NextSendAt time.Time

	prevNextSendAt time.Time
}

// Ledger paces sends per sender account and is shared by every scheduler
// loop, so one identity sending for several groups still honors its limits.
// State is process-local: a restart resets counters, which errs toward
// sending slightly more, never toward losing sends.
type Ledger struct {
	mu          sync.Mutex
	entries     map[string]*ThrottleEntry
	minInterval time.Duration
	maxInterval time.Duration
	maxPerHour  int
	maxPerDay   int
}

func NewLedger(minInterval, maxInterval time.Duration, maxPerHour, maxPerDay int) *Ledger {
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Ledger{
		entries:     make(map[string]*ThrottleEntry),
		minInterval: minInterval,
		maxInterval: maxInterval,
		maxPerHour:  maxPerHour,
		maxPerDay:   maxPerDay,
	}
}

func (l *Ledger) entry(sender string) *ThrottleEntry {
	e, ok := l.entries[sender]
	if !ok {
		e = &ThrottleEntry{}
		l.entries[sender] = e
	}
	return e
}

// roll lazily resets counters when now has crossed into a new natural hour or
// day since the window started.
func roll(e *ThrottleEntry, now time.Time) {
	hourStart := now.Truncate(time.Hour)
	if e.HourStart.IsZero() || hourStart.After(e.HourStart) {
		e.HourStart = hourStart
		e.HourCount = 0
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if e.DayStart.IsZero() || dayStart.After(e.DayStart) {
		e.DayStart = dayStart
		e.DayCount = 0
	}
}

// Reserve claims a send slot for the sender, or reports that none is open.
// The eligibility check and the counter bump happen under one lock, so two
// scheduler loops sharing the ledger can never both take the last slot of an
// hour or land inside each other's interval gate. A successful claim
// schedules the next eligible moment a random interval away, so sends from
// one account never land on a fixed beat; callers must Release a claim whose
// mail never left.
func (l *Ledger) Reserve(sender string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(sender)
	roll(e, now)
	if e.HourCount >= l.maxPerHour || e.DayCount >= l.maxPerDay {
		return false
	}
	if now.Before(e.NextSendAt) {
		return false
	}
	e.HourCount++
	e.DayCount++
	e.prevNextSendAt = e.NextSendAt
	jitter := l.minInterval
	if span := l.maxInterval - l.minInterval; span > 0 {
		jitter += time.Duration(rand.Int63n(int64(span) + 1))
	}
	e.NextSendAt = now.Add(jitter)
	return true
}

// Release returns a slot claimed by Reserve when the send did not happen, so
// a failed attempt does not burn the sender's budget.
func (l *Ledger) Release(sender string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(sender)
	if e.HourCount > 0 {
		e.HourCount--
	}
	if e.DayCount > 0 {
		e.DayCount--
	}
	e.NextSendAt = e.prevNextSendAt
}

// NextEligibleAt returns when the sender becomes eligible again, considering
// the interval gate and exhausted hour/day windows.
func (l *Ledger) NextEligibleAt(sender string, now time.Time) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(sender)
	roll(e, now)
	next := e.NextSendAt
	if next.Before(now) {
		next = now
	}
	if e.HourCount >= l.maxPerHour {
		hourReset := e.HourStart.Add(time.Hour)
		if hourReset.After(next) {
			next = hourReset
		}
	}
	if e.DayCount >= l.maxPerDay {
		dayReset := e.DayStart.Add(24 * time.Hour)
		if dayReset.After(next) {
			next = dayReset
		}
	}
	return next
}
