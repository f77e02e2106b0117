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

// Package market 行情数据提供方。
// 查无此标的不是错误：价格返回 0，新闻和申报返回空列表，
// 由上层把“取过但为空”明确写进数据快照。
package market

import (
	"context"
	"fmt"

	"advisor-platform/pkg/config"
)

// Headline 一条公司新闻
type Headline struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	Published int64  `json:"published"`
	Summary   string `json:"summary,omitempty"`
}

// Filing 一条监管申报
type Filing struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// Provider 行情数据接口
type Provider interface {
	// Price 最新价格，查无返回 0
	Price(ctx context.Context, symbol string) (float64, error)
	// Headlines 近期公司新闻，最多 max 条
	Headlines(ctx context.Context, symbol string, max int) ([]Headline, error)
	// Filings 近期监管申报，最多 max 条
	Filings(ctx context.Context, symbol string, max int) ([]Filing, error)
}

// NewProvider 根据配置创建行情数据提供方
func NewProvider(cfg config.MarketConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMockProvider(), nil
	case "finnhub":
		return NewFinnhubProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported market provider: %s", cfg.Provider)
	}
}
