// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package calc 持仓收益的纯计算层。
// 价格由调用方一次取齐后传入，这里不发起任何网络调用，
// 同一次运行内的所有计算共享同一份价格快照。
package calc

import (
	"math"
	"sort"
	"strings"
)

// Position 单个持仓
type Position struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"security_name,omitempty"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"purchase_price"`
	Sector   string  `json:"sector,omitempty"`
	Class    string  `json:"asset_class,omitempty"`
}

// Return 单个持仓的收益
type Return struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"security_name,omitempty"`
	Quantity     float64 `json:"quantity"`
	AvgCost      float64 `json:"purchase_price"`
	CurrentPrice float64 `json:"current_price"`
	Gain         float64 `json:"gain"`
	PctReturn    float64 `json:"pct_return"`
	Unratable    bool    `json:"unratable,omitempty"`
}

// Weight 单个持仓在组合中的权重
type Weight struct {
	Symbol string  `json:"ticker"`
	Pct    float64 `json:"weight_in_portfolio"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func filter(positions []Position, tickers []string) []Position {
	if len(tickers) == 0 {
		return positions
	}
	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		want[strings.ToUpper(t)] = true
	}
	out := make([]Position, 0, len(tickers))
	for _, p := range positions {
		if want[strings.ToUpper(p.Symbol)] {
			out = append(out, p)
		}
	}
	return out
}

func oneReturn(p Position, price float64) Return {
	r := Return{
		Symbol:       strings.ToUpper(p.Symbol),
		Name:         p.Name,
		Quantity:     p.Quantity,
		AvgCost:      round2(p.AvgCost),
		CurrentPrice: round2(price),
		Gain:         round2(p.Quantity * (price - p.AvgCost)),
	}
	// 成本为零的持仓（赠股等）无法计算百分比收益
	if p.AvgCost == 0 {
		r.Unratable = true
		return r
	}
	r.PctReturn = round2((price - p.AvgCost) / p.AvgCost * 100)
	return r
}

// Returns 计算收益。tickers 为空时覆盖全部持仓；
// prices 缺失的标的按 0 计价，与上游部分结果的快照保持一致。
func Returns(positions []Position, prices map[string]float64, tickers []string) []Return {
	selected := filter(positions, tickers)
	out := make([]Return, 0, len(selected))
	for _, p := range selected {
		out = append(out, oneReturn(p, prices[strings.ToUpper(p.Symbol)]))
	}
	return out
}

// Compare 按标的对比收益
func Compare(positions []Position, prices map[string]float64, tickers []string) map[string]Return {
	out := make(map[string]Return)
	for _, r := range Returns(positions, prices, tickers) {
		out[r.Symbol] = r
	}
	return out
}

// sortByPct 按百分比收益排序，收益相同时按标的代码字典序，保证结果可复现。
// 无法计算百分比的持仓排在末尾。
func sortByPct(returns []Return, desc bool) {
	sort.SliceStable(returns, func(i, j int) bool {
		a, b := returns[i], returns[j]
		if a.Unratable != b.Unratable {
			return !a.Unratable
		}
		if a.PctReturn != b.PctReturn {
			if desc {
				return a.PctReturn > b.PctReturn
			}
			return a.PctReturn < b.PctReturn
		}
		return a.Symbol < b.Symbol
	})
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// BestPerformers 百分比收益最高的前 limit 个持仓
func BestPerformers(positions []Position, prices map[string]float64, limit int) []Return {
	all := Returns(positions, prices, nil)
	sortByPct(all, true)
	limit = clampLimit(limit)
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// WorstPerformers 百分比收益最低的前 limit 个持仓
func WorstPerformers(positions []Position, prices map[string]float64, limit int) []Return {
	all := Returns(positions, prices, nil)
	sortByPct(all, false)
	limit = clampLimit(limit)
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// Allocation 按维度分桶计算市值占比，by 支持 sector 与 asset_class。
// 各桶百分比合计 100（四舍五入造成的偏差不超过 0.1）。
func Allocation(positions []Position, prices map[string]float64, by string) map[string]float64 {
	total := 0.0
	values := make(map[string]float64)
	for _, p := range positions {
		v := p.Quantity * prices[strings.ToUpper(p.Symbol)]
		total += v
		key := p.Sector
		if by == "asset_class" {
			key = p.Class
		}
		if key == "" {
			key = "Unknown"
		}
		values[key] += v
	}
	out := make(map[string]float64, len(values))
	for k, v := range values {
		if total > 0 {
			out[k] = round2(v / total * 100)
		} else {
			out[k] = 0
		}
	}
	return out
}

// WeightInPortfolio 单个标的占组合市值的百分比
func WeightInPortfolio(positions []Position, prices map[string]float64, ticker string) Weight {
	ticker = strings.ToUpper(ticker)
	total := 0.0
	for _, p := range positions {
		total += p.Quantity * prices[strings.ToUpper(p.Symbol)]
	}
	w := Weight{Symbol: ticker}
	if total == 0 {
		return w
	}
	for _, p := range positions {
		if strings.ToUpper(p.Symbol) == ticker {
			w.Pct = round2(p.Quantity * prices[ticker] / total * 100)
			return w
		}
	}
	return w
}

// Symbols 持仓标的代码列表（去重，保持持仓顺序）
func Symbols(positions []Position) []string {
	seen := make(map[string]bool, len(positions))
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		s := strings.ToUpper(p.Symbol)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// TotalValue 组合总市值
func TotalValue(positions []Position, prices map[string]float64) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.Quantity * prices[strings.ToUpper(p.Symbol)]
	}
	return round2(total)
}

// TotalGain 组合总盈亏
func TotalGain(positions []Position, prices map[string]float64) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.Quantity * (prices[strings.ToUpper(p.Symbol)] - p.AvgCost)
	}
	return round2(total)
}
