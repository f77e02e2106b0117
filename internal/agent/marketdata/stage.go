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

// Package marketdata 市场数据阶段。
// 每个实体独立解析，单个失败只降级为部分结果；
// 行情源没有的标的产出明确的“未收录”条目，不静默丢弃。
package marketdata

import (
	"context"
	"time"

	"advisor-platform/internal/market"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// Stage 市场数据阶段
type Stage struct {
	provider     market.Provider
	maxHeadlines int
	maxFilings   int
	timeout      time.Duration
	logger       *log.Logger
}

// New 创建市场数据阶段。maxHeadlines/maxFilings 控制响应体量。
func New(provider market.Provider, maxHeadlines, maxFilings int, timeout time.Duration, logger *log.Logger) *Stage {
	if maxHeadlines <= 0 {
		maxHeadlines = 3
	}
	if maxFilings <= 0 {
		maxFilings = 2
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Stage{
		provider:     provider,
		maxHeadlines: maxHeadlines,
		maxFilings:   maxFilings,
		timeout:      timeout,
		logger:       logger,
	}
}

// Name 阶段标识
func (s *Stage) Name() string {
	return common.StageMarket
}

// Fetch 为计划中的每个实体取价格、新闻与申报
func (s *Stage) Fetch(ctx context.Context, plan common.ExecutionPlan, prices *common.PriceBook, clientID string) common.StageResult {
	symbols := plan.Symbols()
	if len(symbols) == 0 {
		return common.NotFoundResult("no entities to look up in the market feed")
	}

	payload := make(map[string]any, len(symbols))
	var missing []string
	found := 0

	for _, symbol := range symbols {
		entry, ok := s.fetchOne(ctx, symbol, prices)
		payload[symbol] = entry
		if ok {
			found++
		} else {
			missing = append(missing, symbol)
		}
	}

	switch {
	case found == 0:
		return common.NotFoundResult("none of the requested entities are tracked in the market feed")
	case len(missing) > 0:
		return common.Partial(payload, missing)
	default:
		return common.Success(payload)
	}
}

// fetchOne 解析单个标的。返回 false 表示该标的未取到任何数据。
func (s *Stage) fetchOne(ctx context.Context, symbol string, prices *common.PriceBook) (map[string]any, bool) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	price, priceErr := prices.Price(cctx, symbol)
	headlines, newsErr := s.provider.Headlines(cctx, symbol, s.maxHeadlines)
	filings, filingsErr := s.provider.Filings(cctx, symbol, s.maxFilings)
	metrics.CollaboratorDuration.WithLabelValues("market").Observe(time.Since(start).Seconds())

	if priceErr != nil {
		s.logger.Warn("market price lookup failed", "symbol", symbol, "error", priceErr)
		metrics.StageFallbackTotal.WithLabelValues(common.StageMarket, common.FallbackCause(priceErr)).Inc()
	}
	if newsErr != nil {
		s.logger.Warn("market news lookup failed", "symbol", symbol, "error", newsErr)
	}
	if filingsErr != nil {
		s.logger.Warn("market filings lookup failed", "symbol", symbol, "error", filingsErr)
	}

	// 价格为零且无新闻视为行情源未收录
	if (priceErr != nil || price == 0) && (newsErr != nil || len(headlines) == 0) {
		return map[string]any{
			"message": "not tracked in market feed",
		}, false
	}

	entry := map[string]any{
		"latest_price": price,
		"news":         headlines,
		"filings":      filings,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if newsErr != nil {
		entry["news"] = []market.Headline{}
	}
	if filingsErr != nil {
		entry["filings"] = []market.Filing{}
	}
	return entry, true
}
