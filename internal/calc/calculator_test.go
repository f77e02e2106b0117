package calc

import (
	"math"
	"testing"
)

var testPositions = []Position{
	{Symbol: "MSFT", Name: "Microsoft Corp", Quantity: 30, AvgCost: 300, Sector: "Technology", Class: "Equity"},
	{Symbol: "AAPL", Name: "Apple Inc", Quantity: 50, AvgCost: 150, Sector: "Technology", Class: "Equity"},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Quantity: 20, AvgCost: 160, Sector: "Healthcare", Class: "Equity"},
	{Symbol: "FREE", Name: "Free Shares Co", Quantity: 10, AvgCost: 0, Sector: "Technology", Class: "Equity"},
}

var testPrices = map[string]float64{
	"MSFT": 511.61,
	"AAPL": 180.00,
	"JNJ":  144.00,
	"FREE": 12.00,
}

func TestReturns(t *testing.T) {
	got := Returns(testPositions, testPrices, []string{"msft"})
	if len(got) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(got))
	}
	r := got[0]
	if r.Symbol != "MSFT" {
		t.Errorf("symbol = %s", r.Symbol)
	}
	if r.Gain != 6348.30 {
		t.Errorf("gain = %.2f, want 6348.30", r.Gain)
	}
	if r.PctReturn != 70.54 {
		t.Errorf("pct_return = %.2f, want 70.54", r.PctReturn)
	}
}

func TestReturns_ZeroCostUnratable(t *testing.T) {
	got := Returns(testPositions, testPrices, []string{"FREE"})
	if len(got) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(got))
	}
	r := got[0]
	if !r.Unratable {
		t.Error("零成本持仓应标记 unratable")
	}
	if r.PctReturn != 0 {
		t.Errorf("unratable 的 pct_return 应为 0，实际 %.2f", r.PctReturn)
	}
	if r.Gain != 120.00 {
		t.Errorf("gain = %.2f, want 120.00", r.Gain)
	}
}

func TestReturns_MissingPrice(t *testing.T) {
	got := Returns([]Position{{Symbol: "GOOG", Quantity: 5, AvgCost: 100}}, map[string]float64{}, nil)
	if got[0].CurrentPrice != 0 {
		t.Errorf("缺价标的应按 0 计价，实际 %.2f", got[0].CurrentPrice)
	}
	if got[0].Gain != -500.00 {
		t.Errorf("gain = %.2f, want -500.00", got[0].Gain)
	}
}

func TestCompare(t *testing.T) {
	got := Compare(testPositions, testPrices, []string{"MSFT", "AAPL"})
	if len(got) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(got))
	}
	if got["AAPL"].PctReturn != 20.00 {
		t.Errorf("AAPL pct_return = %.2f, want 20.00", got["AAPL"].PctReturn)
	}
}

func TestBestWorstPerformers(t *testing.T) {
	best := BestPerformers(testPositions, testPrices, 2)
	if len(best) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(best))
	}
	if best[0].Symbol != "MSFT" || best[1].Symbol != "AAPL" {
		t.Errorf("best = [%s %s], want [MSFT AAPL]", best[0].Symbol, best[1].Symbol)
	}

	worst := WorstPerformers(testPositions, testPrices, 1)
	if worst[0].Symbol != "JNJ" {
		t.Errorf("worst = %s, want JNJ", worst[0].Symbol)
	}
}

func TestBestPerformers_SymbolTiebreak(t *testing.T) {
	positions := []Position{
		{Symbol: "BBB", Quantity: 1, AvgCost: 100},
		{Symbol: "AAA", Quantity: 1, AvgCost: 100},
	}
	prices := map[string]float64{"AAA": 110, "BBB": 110}
	got := BestPerformers(positions, prices, 2)
	if got[0].Symbol != "AAA" || got[1].Symbol != "BBB" {
		t.Errorf("收益相同时应按代码字典序，实际 [%s %s]", got[0].Symbol, got[1].Symbol)
	}
}

func TestBestPerformers_LimitClamp(t *testing.T) {
	if got := BestPerformers(testPositions, testPrices, 0); len(got) != 1 {
		t.Errorf("limit 0 应收敛为 1，实际 %d", len(got))
	}
	if got := BestPerformers(testPositions, testPrices, 1000); len(got) != len(testPositions) {
		t.Errorf("limit 超过持仓数应截断，实际 %d", len(got))
	}
	// unratable 持仓排在末尾
	all := BestPerformers(testPositions, testPrices, 100)
	if all[len(all)-1].Symbol != "FREE" {
		t.Errorf("unratable 应排在末尾，实际 %s", all[len(all)-1].Symbol)
	}
}

func TestAllocation_SumsTo100(t *testing.T) {
	got := Allocation(testPositions, testPrices, "sector")
	if len(got) != 2 {
		t.Fatalf("期望 2 个分桶，实际 %d", len(got))
	}
	sum := 0.0
	for _, v := range got {
		sum += v
	}
	if math.Abs(sum-100) > 0.1 {
		t.Errorf("分桶合计 %.2f，应在 100±0.1 内", sum)
	}
}

func TestAllocation_UnknownBucketAndEmpty(t *testing.T) {
	positions := []Position{{Symbol: "X", Quantity: 1, AvgCost: 1}}
	got := Allocation(positions, map[string]float64{"X": 10}, "sector")
	if got["Unknown"] != 100 {
		t.Errorf("缺 sector 的持仓应归入 Unknown，实际 %v", got)
	}

	zero := Allocation(positions, map[string]float64{}, "sector")
	if zero["Unknown"] != 0 {
		t.Errorf("总市值为零时各桶应为 0，实际 %v", zero)
	}
}

func TestWeightInPortfolio(t *testing.T) {
	positions := []Position{
		{Symbol: "A", Quantity: 1, AvgCost: 1},
		{Symbol: "B", Quantity: 3, AvgCost: 1},
	}
	prices := map[string]float64{"A": 10, "B": 10}
	w := WeightInPortfolio(positions, prices, "a")
	if w.Symbol != "A" || w.Pct != 25.00 {
		t.Errorf("weight = %+v, want A 25.00", w)
	}
	missing := WeightInPortfolio(positions, prices, "ZZZ")
	if missing.Pct != 0 {
		t.Errorf("未持有标的权重应为 0，实际 %.2f", missing.Pct)
	}
}

func TestTotals(t *testing.T) {
	positions := testPositions[:2]
	if got := TotalValue(positions, testPrices); got != 24348.30 {
		t.Errorf("TotalValue = %.2f, want 24348.30", got)
	}
	if got := TotalGain(positions, testPrices); got != 7848.30 {
		t.Errorf("TotalGain = %.2f, want 7848.30", got)
	}
}

func TestSymbols(t *testing.T) {
	got := Symbols(append(testPositions, Position{Symbol: "msft"}))
	if len(got) != 4 {
		t.Fatalf("期望去重后 4 个代码，实际 %d", len(got))
	}
	if got[0] != "MSFT" {
		t.Errorf("应保持持仓顺序，首个为 %s", got[0])
	}
}
