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

// Package plan 规划阶段。
// 意图到 agent 的路由是确定性查表；操作选择优先走模型路径，
// 模型失败或空结果时退到动词规则。计划校验失败以澄清请求代替报错。
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/storage/cache"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// 意图到数据阶段的路由表。hybrid 下 market 必须先于 portfolio：
// 持仓影响分析依赖已就绪的市场上下文。
var routingTable = map[common.Intent][]string{
	common.IntentPortfolio: {common.StagePortfolio},
	common.IntentMarket:    {common.StageMarket},
	common.IntentHybrid:    {common.StageMarket, common.StagePortfolio},
	common.IntentUnknown:   {},
}

const (
	defaultLimit = 5
	minLimit     = 1
	maxLimit     = 100
)

// Planner 规划器
type Planner struct {
	model   llm.Client
	timeout time.Duration
	logger  *log.Logger

	cache    cache.Store
	cacheTTL time.Duration
}

// New 创建规划器
func New(model llm.Client, timeout time.Duration, logger *log.Logger) *Planner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Planner{model: model, timeout: timeout, logger: logger}
}

// UseCache 启用计划缓存：同一查询与实体组合在 TTL 内复用模型选择的操作。
// 带历史的查询不缓存，后续轮次的计划可能依赖上下文。
func (p *Planner) UseCache(store cache.Store, ttl time.Duration) {
	p.cache = store
	p.cacheTTL = ttl
}

// Plan 生成执行计划
func (p *Planner) Plan(ctx context.Context, cls common.Classification, query string, history []string) common.ExecutionPlan {
	plan := common.ExecutionPlan{
		Intent:   cls.Intent,
		Entities: cls.Entities,
		Agents:   routingTable[cls.Intent],
	}

	// unknown 与纯 market 意图不需要持仓操作
	if !plan.HasAgent(common.StagePortfolio) {
		return plan
	}

	operations := p.modelOperations(ctx, cls, query, history)
	if len(operations) == 0 {
		operations = ruleOperations(query, cls.Symbols())
	}

	plan.Operations, plan.NeedsClarification, plan.Clarification = validateOperations(operations, cls.Symbols())
	if plan.NeedsClarification {
		p.logger.Info("plan rejected, asking for clarification",
			"error", common.NewStageError(common.StagePlanner, plan.Clarification, common.ErrInvalidPlan))
	}
	return plan
}

// modelOperations 模型工具选择路径。只允许引用已分类的实体。
func (p *Planner) modelOperations(ctx context.Context, cls common.Classification, query string, history []string) []common.Operation {
	if p.model == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cacheable := p.cache != nil && len(history) == 0
	key := planCacheKey(cls, query)
	if cacheable {
		var cached []common.Operation
		if err := p.cache.Get(cctx, key, &cached); err == nil {
			metrics.CacheHitTotal.WithLabelValues(cache.NamespacePlan).Inc()
			return cached
		}
		metrics.CacheMissTotal.WithLabelValues(cache.NamespacePlan).Inc()
	}

	raw, err := p.model.Invoke(cctx, llm.RolePlan, map[string]any{
		"query":                query,
		"intent":               cls.Intent,
		"entities":             cls.Symbols(),
		"conversation_history": history,
	})
	if err != nil {
		metrics.StageFallbackTotal.WithLabelValues(common.StagePlanner, common.FallbackCause(err)).Inc()
		p.logger.Warn("model planning failed, falling back to verb rules", "error", err)
		return nil
	}

	var parsed struct {
		Operations []common.Operation `json:"operations"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		metrics.StageFallbackTotal.WithLabelValues(common.StagePlanner, "malformed").Inc()
		p.logger.Warn("model plan output unparseable, falling back to verb rules", "error", err)
		return nil
	}

	operations := filterToKnownEntities(parsed.Operations, cls.Symbols())
	if cacheable && len(operations) > 0 {
		if err := p.cache.Set(cctx, key, operations, p.cacheTTL); err != nil {
			p.logger.Warn("plan cache write failed", "error", err)
		}
	}
	return operations
}

// planCacheKey 意图 + 实体 + 查询散列
func planCacheKey(cls common.Classification, query string) string {
	h := fnv.New64a()
	h.Write([]byte(query))
	return cache.Key(cache.NamespacePlan,
		fmt.Sprintf("%s:%s:%x", cls.Intent, strings.Join(cls.Symbols(), ","), h.Sum64()))
}

// filterToKnownEntities 剔除引用了未分类实体的参数，模型不得发明实体
func filterToKnownEntities(operations []common.Operation, known []string) []common.Operation {
	knownSet := make(map[string]bool, len(known))
	for _, s := range known {
		knownSet[s] = true
	}

	out := make([]common.Operation, 0, len(operations))
	for _, op := range operations {
		if !knownOperation(op.Name) {
			continue
		}
		if op.Arguments == nil {
			out = append(out, op)
			continue
		}
		if raw, ok := op.Arguments["entities"]; ok {
			filtered := filterSymbols(raw, knownSet)
			if len(filtered) == 0 && len(known) > 0 {
				continue
			}
			op.Arguments["entities"] = filtered
		}
		if raw, ok := op.Arguments["ticker"]; ok {
			ticker, _ := raw.(string)
			ticker = strings.ToUpper(strings.TrimSpace(ticker))
			if !knownSet[ticker] {
				continue
			}
			op.Arguments["ticker"] = ticker
		}
		out = append(out, op)
	}
	return out
}

func knownOperation(name string) bool {
	switch name {
	case common.OpGetReturns, common.OpComparePerformance, common.OpGetBestPerformers,
		common.OpGetWorstPerformers, common.OpGetWeightInPortfolio, common.OpGetAllocation,
		common.OpGetHoldings:
		return true
	}
	return false
}

func filterSymbols(raw any, known map[string]bool) []string {
	var out []string
	list, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			for _, s := range strs {
				list = append(list, s)
			}
		}
	}
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if known[s] {
			out = append(out, s)
		}
	}
	return out
}

// ruleOperations 动词规则兜底
func ruleOperations(query string, entities []string) []common.Operation {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, "compare", " vs ", "versus", "better"):
		return []common.Operation{{
			Name:      common.OpComparePerformance,
			Arguments: map[string]any{"entities": entities},
		}}
	case containsAny(lower, "best", "top", "strongest"):
		return []common.Operation{{
			Name:      common.OpGetBestPerformers,
			Arguments: map[string]any{"limit": float64(defaultLimit)},
		}}
	case containsAny(lower, "worst", "bottom", "weakest"):
		return []common.Operation{{
			Name:      common.OpGetWorstPerformers,
			Arguments: map[string]any{"limit": float64(defaultLimit)},
		}}
	case containsAny(lower, "weight", "exposure"):
		ops := make([]common.Operation, 0, len(entities))
		for _, ticker := range entities {
			ops = append(ops, common.Operation{
				Name:      common.OpGetWeightInPortfolio,
				Arguments: map[string]any{"ticker": ticker},
			})
		}
		return ops
	case containsAny(lower, "allocation", "allocated", "diversif"):
		by := "sector"
		if strings.Contains(lower, "asset class") {
			by = "asset_class"
		}
		return []common.Operation{{
			Name:      common.OpGetAllocation,
			Arguments: map[string]any{"type": by},
		}}
	case containsAny(lower, "return", "performance", "gain", "loss", "doing", "perform"):
		return []common.Operation{{
			Name:      common.OpGetReturns,
			Arguments: map[string]any{"entities": entities},
		}}
	case containsAny(lower, "holding", "own", "position", "stock", "portfolio"):
		return []common.Operation{{
			Name:      common.OpGetHoldings,
			Arguments: map[string]any{"include_details": true},
		}}
	case len(entities) > 0:
		return []common.Operation{{
			Name:      common.OpGetReturns,
			Arguments: map[string]any{"entities": entities},
		}}
	default:
		return nil
	}
}

// validateOperations 计划校验：
// compare_performance 要求 ≥2 个实体且去重；get_weight_in_portfolio 按实体展开，
// 每票至多一个操作（模型路径可能重复同一实体）；limit 收敛
func validateOperations(operations []common.Operation, entities []string) (out []common.Operation, needsClarification bool, clarification string) {
	seenWeight := make(map[string]bool)
	seenCompare := make(map[string]bool)
	for _, op := range operations {
		switch op.Name {
		case common.OpComparePerformance:
			tickers := dedupe(opEntities(op, entities))
			if len(tickers) < 2 {
				return nil, true, "Comparison needs at least two tickers. Which holdings would you like to compare?"
			}
			key := strings.Join(tickers, ",")
			if seenCompare[key] {
				continue
			}
			seenCompare[key] = true
			op.Arguments = map[string]any{"entities": tickers}
			out = append(out, op)

		case common.OpGetWeightInPortfolio:
			tickers := opEntities(op, entities)
			if ticker, ok := op.Arguments["ticker"].(string); ok && ticker != "" {
				tickers = []string{ticker}
			}
			for _, ticker := range tickers {
				if seenWeight[ticker] {
					continue
				}
				seenWeight[ticker] = true
				out = append(out, common.Operation{
					Name:      common.OpGetWeightInPortfolio,
					Arguments: map[string]any{"ticker": ticker},
				})
			}

		case common.OpGetBestPerformers, common.OpGetWorstPerformers:
			op.Arguments = map[string]any{"limit": float64(clampLimit(opLimit(op)))}
			out = append(out, op)

		default:
			out = append(out, op)
		}
	}
	return out, false, ""
}

// dedupe 保序去重
func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// opEntities 操作引用的实体，参数缺省时回退到分类实体
func opEntities(op common.Operation, fallback []string) []string {
	if op.Arguments == nil {
		return fallback
	}
	raw, ok := op.Arguments["entities"]
	if !ok {
		return fallback
	}
	var out []string
	switch list := raw.(type) {
	case []string:
		out = list
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func opLimit(op common.Operation) int {
	if op.Arguments == nil {
		return defaultLimit
	}
	switch v := op.Arguments["limit"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return defaultLimit
}

func clampLimit(limit int) int {
	if limit < minLimit {
		return minLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
