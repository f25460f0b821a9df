package indicators

import "testing"

func TestEMAFirstSampleSeeds(t *testing.T) {
	e := NewEMA(5)
	got := e.Next(100)
	if got != 100 {
		t.Fatalf("first EMA sample should equal input, got %v", got)
	}
}

func TestEMASmoothing(t *testing.T) {
	e := NewEMA(3) // alpha = 0.5
	e.Next(10)
	got := e.Next(20)
	want := 0.5*20 + 0.5*10
	if got != want {
		t.Fatalf("EMA got %v want %v", got, want)
	}
}

func TestSMAUndefinedBelowPeriod(t *testing.T) {
	s := NewSMA(4)
	got := s.Next(10)
	if got != 10 {
		t.Fatalf("SMA with one sample should equal the sample, got %v", got)
	}
	got = s.Next(20)
	if got != 15 {
		t.Fatalf("SMA of [10,20] should be 15, got %v", got)
	}
}

func TestSMARolling(t *testing.T) {
	s := NewSMA(2)
	s.Next(10)
	s.Next(20)
	got := s.Next(30) // window becomes [20,30]
	if got != 25 {
		t.Fatalf("rolling SMA got %v want 25", got)
	}
}

func TestATRFirstBarIsRange(t *testing.T) {
	a := NewATR(3)
	got := a.Next(110, 90, 100)
	if got != 20 {
		t.Fatalf("first ATR sample should be high-low, got %v", got)
	}
}

func TestATRSeedIsAverage(t *testing.T) {
	a := NewATR(2)
	a.Next(110, 90, 100) // tr=20
	got := a.Next(105, 95, 100) // tr = max(10, |105-100|, |95-100|)=10 -> seeded avg of [20,10]=15
	if got != 15 {
		t.Fatalf("seeded ATR got %v want 15", got)
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	r := NewRSI(3)
	r.Next(100)
	r.Next(101)
	r.Next(102)
	got := r.Next(103)
	if got != 100 {
		t.Fatalf("RSI with no losses should be 100, got %v", got)
	}
}

func TestBollingerMiddleEqualsSMA(t *testing.T) {
	b := NewBollingerBands(2, 2)
	b.Next(10)
	out := b.Next(20)
	if out.Middle != 15 {
		t.Fatalf("bollinger middle got %v want 15", out.Middle)
	}
	if out.Upper <= out.Middle || out.Lower >= out.Middle {
		t.Fatalf("bollinger bands should straddle the middle: %+v", out)
	}
}

func TestADXSeriesShortHistoryIsZero(t *testing.T) {
	highs := []float64{1, 2, 3}
	lows := []float64{0, 1, 2}
	closes := []float64{0.5, 1.5, 2.5}
	got := ADXSeries(highs, lows, closes, 5)
	for _, v := range got {
		if v != 0 {
			t.Fatalf("ADX with insufficient history should be all zero, got %v", got)
		}
	}
}
