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

// Package portfoliodata 持仓数据阶段。
// 取出客户持仓后一次性解析全部价格，再按计划内的操作走纯计算层，
// 保证同一次回答内所有数字引用同一份价格快照。
package portfoliodata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"advisor-platform/internal/calc"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/portfolio"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// Stage 持仓数据阶段
type Stage struct {
	store   portfolio.Store
	timeout time.Duration
	logger  *log.Logger
}

// New 创建持仓数据阶段
func New(store portfolio.Store, timeout time.Duration, logger *log.Logger) *Stage {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Stage{store: store, timeout: timeout, logger: logger}
}

// Name 阶段标识
func (s *Stage) Name() string {
	return common.StagePortfolio
}

// Fetch 执行计划内的持仓操作
func (s *Stage) Fetch(ctx context.Context, plan common.ExecutionPlan, prices *common.PriceBook, clientID string) common.StageResult {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	holdings, err := s.store.Holdings(cctx, clientID)
	metrics.CollaboratorDuration.WithLabelValues("portfolio").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("portfolio store lookup failed", "client_id", clientID, "error", err)
		metrics.StageFallbackTotal.WithLabelValues(common.StagePortfolio, common.FallbackCause(err)).Inc()
		return common.FailureResult("portfolio data is temporarily unavailable")
	}
	if len(holdings) == 0 {
		return common.NotFoundResult(fmt.Sprintf("No portfolio found for client %s", clientID))
	}

	positions := portfolio.ToPositions(holdings)
	held := make(map[string]bool, len(positions))
	for _, sym := range calc.Symbols(positions) {
		held[sym] = true
	}

	// 请求中但未持有的标的保留为显式缺失项
	var notHeld []string
	for _, sym := range plan.Symbols() {
		if !held[strings.ToUpper(sym)] {
			notHeld = append(notHeld, strings.ToUpper(sym))
		}
	}

	book := prices.Resolve(cctx, calc.Symbols(positions))

	payload := make(map[string]any)
	operations := plan.Operations
	if len(operations) == 0 {
		operations = []common.Operation{{
			Name:      common.OpGetReturns,
			Arguments: map[string]any{"entities": plan.Symbols()},
		}}
	}

	for _, op := range operations {
		s.runOperation(op, positions, book, payload)
	}

	payload["total_value"] = calc.TotalValue(positions, book)
	payload["total_gain"] = calc.TotalGain(positions, book)
	if len(notHeld) > 0 {
		payload["not_held"] = notHeld
		return common.Partial(payload, notHeld)
	}
	return common.Success(payload)
}

func (s *Stage) runOperation(op common.Operation, positions []calc.Position, book map[string]float64, payload map[string]any) {
	switch op.Name {
	case common.OpGetReturns:
		payload["returns"] = calc.Returns(positions, book, argEntities(op))

	case common.OpComparePerformance:
		payload["comparison"] = calc.Compare(positions, book, argEntities(op))

	case common.OpGetBestPerformers:
		payload["best_performers"] = calc.BestPerformers(positions, book, argLimit(op))

	case common.OpGetWorstPerformers:
		payload["worst_performers"] = calc.WorstPerformers(positions, book, argLimit(op))

	case common.OpGetWeightInPortfolio:
		ticker, _ := op.Arguments["ticker"].(string)
		weights, _ := payload["weights"].([]calc.Weight)
		payload["weights"] = append(weights, calc.WeightInPortfolio(positions, book, ticker))

	case common.OpGetAllocation:
		by := argString(op, "type", "sector")
		payload["allocation"] = calc.Allocation(positions, book, by)
		payload["allocation_by"] = by

	case common.OpGetHoldings:
		payload["holdings"] = positions
		payload["returns"] = calc.Returns(positions, book, nil)

	default:
		s.logger.Warn("unknown portfolio operation skipped", "operation", op.Name)
	}
}

// argEntities 操作引用的标的列表，兼容模型路径的 []any 形态
func argEntities(op common.Operation) []string {
	if op.Arguments == nil {
		return nil
	}
	switch list := op.Arguments["entities"].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, strings.ToUpper(s))
			}
		}
		return out
	}
	return nil
}

func argLimit(op common.Operation) int {
	if op.Arguments == nil {
		return 5
	}
	switch v := op.Arguments["limit"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 5
}

func argString(op common.Operation, key, fallback string) string {
	if op.Arguments == nil {
		return fallback
	}
	if s, ok := op.Arguments[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
