package optimization

import (
	"testing"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
)

func reportWith(pf, sharpe, maxddPct, calmar float64, trades int) domain.PerformanceReport {
	r := domain.NewPerformanceReport()
	r.ProfitFactor = pf
	r.SharpeRatio = sharpe
	r.MaxDrawdownPercentage = maxddPct
	r.CalmarRatio = calmar
	r.TotalTrades = trades
	return r
}

func TestRankFiltersBelowMinimumTrades(t *testing.T) {
	candidates := []RankedCandidate{
		{RunID: 1, Report: reportWith(3, 2, 10, 2, 29)},
		{RunID: 2, Report: reportWith(3, 2, 10, 2, 30)},
	}
	ranked := Rank(candidates)
	if len(ranked) != 1 {
		t.Fatalf("expected exactly one survivor above the trade floor, got %d", len(ranked))
	}
	if ranked[0].RunID != 2 {
		t.Fatalf("expected run 2 to survive, got run %d", ranked[0].RunID)
	}
}

func TestRankOrdersHigherScoreFirst(t *testing.T) {
	a := RankedCandidate{RunID: 1, Report: reportWith(3, 2, 10, 2, 50)}
	b := RankedCandidate{RunID: 2, Report: reportWith(5, 4, 30, 3, 40)}

	ranked := Rank([]RankedCandidate{a, b})
	if len(ranked) != 2 {
		t.Fatalf("expected both candidates to survive, got %d", len(ranked))
	}
	if ranked[0].RunID != 2 {
		t.Fatalf("expected run B to rank first, got run %d", ranked[0].RunID)
	}

	wantAScore := 206.5
	wantBScore := 354.5
	if diff := ranked[1].Score - wantAScore; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected A score %v, got %v", wantAScore, ranked[1].Score)
	}
	if diff := ranked[0].Score - wantBScore; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected B score %v, got %v", wantBScore, ranked[0].Score)
	}
}
