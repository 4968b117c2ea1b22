package learning

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Mining tuning. A candidate rule needs at least PatternMinSample matching
// trades and PatternMinWinRate among them before it is promoted.
const (
	PatternMinSample  = 10
	PatternMinWinRate = 0.60
)

// minePairs are the two-indicator combinations mined for joint conditions.
var minePairs = [][2]string{
	{IndEMACross, IndVolume},
	{IndMACD, IndRSI},
	{IndMACD, IndVolume},
	{IndRSI, IndVolume},
	{IndEMACross, IndMACD},
}

// MinePatterns discovers candidate patterns from recent trades: for each
// indicator pair, the interquartile range of winners' entry values becomes a
// pair of "between" conditions, promoted only if the rule would have
// selected winners at PatternMinWinRate or better over PatternMinSample
// trades. Pure function; callers persist and publish the result.
func MinePatterns(trades []TradeRecord, now time.Time) []Pattern {
	if len(trades) < PatternMinSample {
		return nil
	}

	var winners []TradeRecord
	for _, t := range trades {
		if t.Outcome == OutcomeWin {
			winners = append(winners, t)
		}
	}
	if len(winners) < PatternMinSample/2 {
		return nil
	}

	var out []Pattern
	for _, pair := range minePairs {
		c1, ok1 := quartileCondition(pair[0], winners)
		c2, ok2 := quartileCondition(pair[1], winners)
		if !ok1 || !ok2 {
			continue
		}
		cand := Pattern{
			ID:           uuid.NewString(),
			Name:         fmt.Sprintf("%s+%s", pair[0], pair[1]),
			Conditions:   []Condition{c1, c2},
			Active:       true,
			DiscoveredAt: now,
			ValidatedAt:  now,
		}
		winRate, avgRet, sample := backtest(cand, trades)
		if sample < PatternMinSample || winRate < PatternMinWinRate {
			continue
		}
		cand.WinRate = winRate
		cand.AvgReturn = avgRet
		cand.SampleSize = sample
		out = append(out, cand)
	}
	return out
}

// ValidatePatterns re-scores existing patterns against recent trades and
// deactivates any whose win rate has decayed below the promotion bar.
// Patterns with too few matching trades keep their previous stats.
func ValidatePatterns(patterns []Pattern, trades []TradeRecord, now time.Time) []Pattern {
	out := make([]Pattern, len(patterns))
	for i, p := range patterns {
		winRate, avgRet, sample := backtest(p, trades)
		if sample >= PatternMinSample {
			p.WinRate = winRate
			p.AvgReturn = avgRet
			p.SampleSize = sample
			p.Active = winRate >= PatternMinWinRate
			p.ValidatedAt = now
		}
		out[i] = p
	}
	return out
}

// MergePatterns folds freshly mined patterns into the existing list,
// skipping duplicates by name so a rule is discovered once and then only
// revalidated.
func MergePatterns(existing, mined []Pattern) []Pattern {
	seen := make(map[string]bool, len(existing))
	out := append([]Pattern(nil), existing...)
	for _, p := range existing {
		seen[p.Name] = true
	}
	for _, p := range mined {
		if !seen[p.Name] {
			out = append(out, p)
			seen[p.Name] = true
		}
	}
	return out
}

// quartileCondition builds a "between" clause spanning the 25th..75th
// percentile of the winners' entry values for one indicator.
func quartileCondition(name string, winners []TradeRecord) (Condition, bool) {
	vals := make([]float64, 0, len(winners))
	for _, t := range winners {
		if v, ok := snapshotValue(name, t.Entry); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) < 4 {
		return Condition{}, false
	}
	sort.Float64s(vals)
	lo := vals[len(vals)/4]
	hi := vals[len(vals)*3/4]
	if lo >= hi {
		return Condition{}, false
	}
	return Condition{Indicator: name, Operator: "between", Value: lo, Value2: hi}, true
}

// backtest scores a pattern against the trade history: among trades whose
// entry snapshot matched, what fraction won and what they returned.
func backtest(p Pattern, trades []TradeRecord) (winRate, avgReturn float64, sample int) {
	wins := 0
	sumRet := 0.0
	for _, t := range trades {
		if !p.Matches(t.Entry) {
			continue
		}
		sample++
		sumRet += t.ReturnPct
		if t.Outcome == OutcomeWin {
			wins++
		}
	}
	if sample == 0 {
		return 0, 0, 0
	}
	return float64(wins) / float64(sample), sumRet / float64(sample), sample
}
