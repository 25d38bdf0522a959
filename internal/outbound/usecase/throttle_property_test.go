package usecase

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestThrottleLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	genOffset := gen.Int64Range(0, int64(30*24*time.Hour))

	properties.Property("next send lands inside the jitter interval", prop.ForAll(
		func(offset int64, minMinutes, spread int) bool {
			min := time.Duration(minMinutes) * time.Minute
			max := min + time.Duration(spread)*time.Minute
			l := NewLedger(min, max, 1000, 1000)
			now := base.Add(time.Duration(offset))
			if !l.Reserve("s@x.com", now) {
				return false
			}
			gap := l.entries["s@x.com"].NextSendAt.Sub(now)
			return gap >= min && gap <= max
		},
		genOffset,
		gen.IntRange(0, 60),
		gen.IntRange(0, 60),
	))

	properties.Property("a sender never exceeds max-per-hour within one hour", prop.ForAll(
		func(maxPerHour int, attempts int) bool {
			l := NewLedger(0, 0, maxPerHour, 100000)
			now := base
			sent := 0
			for i := 0; i < attempts; i++ {
				// Stay inside one natural hour regardless of attempt count.
				at := now.Add(time.Duration(i) * time.Millisecond)
				if l.Reserve("s@x.com", at) {
					sent++
				}
			}
			return sent <= maxPerHour
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 50),
	))

	properties.Property("rolling is monotone: counters never go negative", prop.ForAll(
		func(offsets []int64) bool {
			l := NewLedger(0, 0, 5, 20)
			for _, off := range offsets {
				now := base.Add(time.Duration(off))
				l.Reserve("s@x.com", now)
				e := l.entries["s@x.com"]
				if e.HourCount < 0 || e.DayCount < 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOffset),
	))

	properties.Property("eligibility resumes by the next natural hour", prop.ForAll(
		func(offset int64) bool {
			l := NewLedger(0, 0, 1, 1000)
			now := base.Add(time.Duration(offset))
			if !l.Reserve("s@x.com", now) {
				return false
			}
			nextHour := now.Truncate(time.Hour).Add(time.Hour)
			return !l.Reserve("s@x.com", now) && l.Reserve("s@x.com", nextHour)
		},
		genOffset,
	))

	properties.TestingRun(t)
}
