package optimization

import (
	"math"
	"sort"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
)

// minTradesToRank is the survivor floor applied before scoring: a report
// built from fewer trades is considered statistically meaningless.
const minTradesToRank = 30

// RankedResult pairs a persisted run's parameters and report with its
// computed score.
type RankedResult struct {
	RunID      int64
	Parameters map[string]any
	Report     domain.PerformanceReport
	Score      float64
}

// Rank filters out reports with fewer than 30 trades, scores every
// survivor, and returns them sorted by descending score (stable, so equal
// scores preserve their original relative order).
//
// score = 40*min(profit_factor,5) + 30*min(sharpe,5) - 35*(maxdd_pct/100) + 15*calmar
func Rank(candidates []RankedCandidate) []RankedResult {
	var survivors []RankedResult
	for _, c := range candidates {
		if c.Report.TotalTrades < minTradesToRank {
			continue
		}
		survivors = append(survivors, RankedResult{
			RunID:      c.RunID,
			Parameters: c.Parameters,
			Report:     c.Report,
			Score:      score(c.Report),
		})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Score > survivors[j].Score
	})
	return survivors
}

// RankedCandidate is an unscored (parameters, report) pair fetched from
// storage for one optimization job.
type RankedCandidate struct {
	RunID      int64
	Parameters map[string]any
	Report     domain.PerformanceReport
}

func score(r domain.PerformanceReport) float64 {
	return 40*math.Min(r.ProfitFactor, 5) +
		30*math.Min(r.SharpeRatio, 5) -
		35*(r.MaxDrawdownPercentage/100) +
		15*r.CalmarRatio
}
