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

package market

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockProvider 离线运行用的静态行情数据。
// 价格对已知标的固定，未知标的返回 0。
type MockProvider struct {
	Prices map[string]float64
}

// NewMockProvider 创建静态提供方
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prices: map[string]float64{
			"MSFT":  511.61,
			"AAPL":  232.50,
			"GOOGL": 201.75,
			"AMZN":  228.90,
			"TSLA":  342.15,
			"JNJ":   158.20,
			"NVDA":  176.40,
		},
	}
}

// Price 静态价格，查无返回 0
func (p *MockProvider) Price(ctx context.Context, symbol string) (float64, error) {
	return p.Prices[strings.ToUpper(symbol)], nil
}

// Headlines 固定一条模拟新闻
func (p *MockProvider) Headlines(ctx context.Context, symbol string, max int) ([]Headline, error) {
	symbol = strings.ToUpper(symbol)
	if _, ok := p.Prices[symbol]; !ok {
		return nil, nil
	}
	out := []Headline{{
		Title:     fmt.Sprintf("Mock financial news headline for %s", symbol),
		Source:    "MockSource",
		Published: time.Now().UTC().Unix(),
	}}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// Filings 固定两条模拟申报
func (p *MockProvider) Filings(ctx context.Context, symbol string, max int) ([]Filing, error) {
	symbol = strings.ToUpper(symbol)
	if _, ok := p.Prices[symbol]; !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	out := []Filing{
		{Type: "8-K", Title: fmt.Sprintf("Mock 8-K filing for %s", symbol), Date: now.Format("2006-01-02")},
		{Type: "10-Q", Title: fmt.Sprintf("Mock quarterly filing for %s", symbol), Date: now.AddDate(0, 0, 1-now.Day()).Format("2006-01-02")},
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}
