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

// Package respond 回答合成阶段。
// 模型基于数据快照组织文字，快照本身原样随回答返回；
// 模型路径失败时退回固定模板，只做数据枚举，不做任何推断。
package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"advisor-platform/internal/calc"
	"advisor-platform/internal/market"
	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// Responder 回答合成阶段
type Responder struct {
	model   llm.Client
	timeout time.Duration
	logger  *log.Logger
}

// New 创建回答合成阶段
func New(model llm.Client, timeout time.Duration, logger *log.Logger) *Responder {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Responder{model: model, timeout: timeout, logger: logger}
}

// Name 阶段标识
func (r *Responder) Name() string {
	return common.StageResponse
}

// Synthesize 合成最终回答。results 以阶段名为键；
// 回答中的所有数字都来自 results 的数据快照。
func (r *Responder) Synthesize(ctx context.Context, query string, history []string, results map[string]common.StageResult) common.Response {
	market, hasMarket := results[common.StageMarket]
	portfolio, hasPortfolio := results[common.StagePortfolio]

	data := make(map[string]any)
	if hasMarket {
		data["market_data"] = stageSnapshot(market)
	}
	if hasPortfolio {
		data["portfolio_data"] = stageSnapshot(portfolio)
	}

	var overlap []string
	if hasMarket && hasPortfolio {
		overlap = overlapSet(market, portfolio)
		data["overlap"] = overlap
	}

	text, err := r.modelText(ctx, query, history, data)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			r.logger.Warn("response model path failed, using template", "error", err)
			metrics.StageFallbackTotal.WithLabelValues(common.StageResponse, common.FallbackCause(err)).Inc()
		} else {
			metrics.StageFallbackTotal.WithLabelValues(common.StageResponse, "malformed").Inc()
		}
		text = templateText(results)
	}

	return common.Response{Text: text, Data: data}
}

func (r *Responder) modelText(ctx context.Context, query string, history []string, data map[string]any) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	input := map[string]any{"query": query}
	for k, v := range data {
		input[k] = v
	}
	if len(history) > 0 {
		input["history"] = history
	}

	raw, err := r.model.Invoke(cctx, llm.RoleRespond, input)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: 解析回答输出 failed: %v", common.ErrCollaboratorMalformedOutput, err)
	}
	return out.Text, nil
}

// stageSnapshot 阶段结果转为可随回答返回的快照
func stageSnapshot(result common.StageResult) map[string]any {
	snapshot := map[string]any{"status": string(result.Status)}
	for k, v := range result.Payload {
		snapshot[k] = v
	}
	if result.Message != "" {
		snapshot["message"] = result.Message
	}
	if len(result.MissingKeys) > 0 {
		snapshot["missing"] = result.MissingKeys
	}
	return snapshot
}

// overlapSet 同时出现在市场结果与持仓收益中的标的
func overlapSet(market, portfolio common.StageResult) []string {
	missing := make(map[string]bool, len(market.MissingKeys))
	for _, sym := range market.MissingKeys {
		missing[sym] = true
	}
	inMarket := make(map[string]bool, len(market.Payload))
	for sym := range market.Payload {
		if !missing[sym] {
			inMarket[sym] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, ret := range portfolioReturns(portfolio) {
		if inMarket[ret.Symbol] && !seen[ret.Symbol] {
			seen[ret.Symbol] = true
			out = append(out, ret.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

func portfolioReturns(result common.StageResult) []calc.Return {
	if result.Payload == nil {
		return nil
	}
	if returns, ok := result.Payload["returns"].([]calc.Return); ok {
		return returns
	}
	if comparison, ok := result.Payload["comparison"].(map[string]calc.Return); ok {
		out := make([]calc.Return, 0, len(comparison))
		for _, r := range comparison {
			out = append(out, r)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return out
	}
	if best, ok := result.Payload["best_performers"].([]calc.Return); ok {
		return best
	}
	if worst, ok := result.Payload["worst_performers"].([]calc.Return); ok {
		return worst
	}
	return nil
}

// templateText 固定模板兜底：按阶段枚举数据，不关联、不推断
func templateText(results map[string]common.StageResult) string {
	var b strings.Builder

	if portfolio, ok := results[common.StagePortfolio]; ok {
		writePortfolioSection(&b, portfolio)
	}
	if market, ok := results[common.StageMarket]; ok {
		writeMarketSection(&b, market)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "I could not find any data to answer that question."
	}
	return text
}

func writePortfolioSection(b *strings.Builder, result common.StageResult) {
	switch result.Status {
	case common.StatusNotFound:
		fmt.Fprintf(b, "%s\n", result.Message)
		return
	case common.StatusFailure:
		fmt.Fprintf(b, "Portfolio data is unavailable right now: %s\n", result.Reason)
		return
	}

	for _, ret := range portfolioReturns(result) {
		if ret.Unratable {
			fmt.Fprintf(b, "%s: %.2f shares at $%.2f, gain $%.2f (percent return unavailable, zero cost basis).\n",
				ret.Symbol, ret.Quantity, ret.CurrentPrice, ret.Gain)
			continue
		}
		fmt.Fprintf(b, "%s: %.2f shares at $%.2f, gain $%.2f (%.2f%%).\n",
			ret.Symbol, ret.Quantity, ret.CurrentPrice, ret.Gain, ret.PctReturn)
	}

	if weights, ok := result.Payload["weights"].([]calc.Weight); ok {
		for _, w := range weights {
			fmt.Fprintf(b, "%s represents %.2f%% of the portfolio.\n", w.Symbol, w.Pct)
		}
	}
	if allocation, ok := result.Payload["allocation"].(map[string]float64); ok {
		keys := make([]string, 0, len(allocation))
		for k := range allocation {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "%s: %.2f%% of portfolio value.\n", k, allocation[k])
		}
	}
	if notHeld, ok := result.Payload["not_held"].([]string); ok && len(notHeld) > 0 {
		fmt.Fprintf(b, "Not held in the portfolio: %s.\n", strings.Join(notHeld, ", "))
	}
}

func writeMarketSection(b *strings.Builder, result common.StageResult) {
	switch result.Status {
	case common.StatusNotFound:
		fmt.Fprintf(b, "No market data was available for this question.\n")
		return
	case common.StatusFailure:
		fmt.Fprintf(b, "Market data is unavailable right now: %s\n", result.Reason)
		return
	}

	symbols := make([]string, 0, len(result.Payload))
	for sym := range result.Payload {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		entry, ok := result.Payload[sym].(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := entry["message"].(string); ok {
			fmt.Fprintf(b, "%s: %s.\n", sym, msg)
			continue
		}
		if price, ok := entry["latest_price"].(float64); ok && price > 0 {
			fmt.Fprintf(b, "%s latest price: $%.2f.\n", sym, price)
		}
		if titles := headlineTitles(entry["news"]); len(titles) > 0 {
			fmt.Fprintf(b, "%s news: %s.\n", sym, strings.Join(titles, "; "))
		}
	}
}

func headlineTitles(v any) []string {
	switch list := v.(type) {
	case []market.Headline:
		out := make([]string, 0, len(list))
		for _, h := range list {
			out = append(out, h.Title)
		}
		return out
	case []string:
		return list
	}
	return nil
}
