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

// Package classify 意图分类阶段。
// 规则路径快速确定，置信度不足或出现待解析指代时走模型路径；
// 模型路径失败时原样保留规则结果，分类对外永不失败。
package classify

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/portfolio"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

var portfolioKeywords = []string{
	"portfolio", "holding", "holdings", "own", "performance", "return",
	"gain", "allocation", "value", "profit", "loss", "perform",
}

var marketKeywords = []string{
	"news", "impact", "deal", "filing", "event", "announcement", "market",
}

// 各意图的规则置信度
var confidenceMap = map[common.Intent]float64{
	common.IntentHybrid:    0.9,
	common.IntentPortfolio: 0.95,
	common.IntentMarket:    0.85,
	common.IntentUnknown:   0.5,
}

var (
	tickerToken = regexp.MustCompile(`\b[A-Z][A-Z0-9]{0,4}\b`)
	pronounRef  = regexp.MustCompile(`\b(it|they|them|its|their|that one)\b`)
)

// 全大写但不是标的代码的常见词
var tickerStopwords = map[string]bool{
	"I": true, "A": true, "THE": true, "US": true, "USA": true, "UK": true,
	"CEO": true, "CFO": true, "IPO": true, "SEC": true, "ETF": true,
	"AI": true, "Q": true, "OK": true, "PE": true, "EPS": true,
}

// Classifier 意图分类器
type Classifier struct {
	model     llm.Client
	threshold float64
	timeout   time.Duration
	logger    *log.Logger
}

// New 创建分类器。threshold 为规则结果触发模型路径的置信度下限。
func New(model llm.Client, threshold float64, timeout time.Duration, logger *log.Logger) *Classifier {
	if threshold <= 0 {
		threshold = 0.7
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Classifier{model: model, threshold: threshold, timeout: timeout, logger: logger}
}

// Classify 分类查询。任何内部错误都退化为 unknown 而非向外传播。
func (c *Classifier) Classify(ctx context.Context, query string, symbolMap map[string][]string, history []string) common.Classification {
	result := c.ruleClassify(query, symbolMap)

	needsModel := result.Intent == common.IntentUnknown ||
		result.Confidence < c.threshold ||
		(len(result.Entities) == 0 && pronounRef.MatchString(strings.ToLower(query)))

	if needsModel && c.model != nil {
		if modelResult, ok := c.modelClassify(ctx, query, symbolMap, history); ok {
			result = modelResult
		}
	}

	return result
}

// ruleClassify 确定性规则分类
func (c *Classifier) ruleClassify(query string, symbolMap map[string][]string) common.Classification {
	lower := strings.ToLower(query)

	portfolioHit := containsAny(lower, portfolioKeywords)
	marketHit := containsAny(lower, marketKeywords)

	var intent common.Intent
	switch {
	case portfolioHit && marketHit:
		intent = common.IntentHybrid
	case portfolioHit:
		intent = common.IntentPortfolio
	case marketHit:
		intent = common.IntentMarket
	default:
		intent = common.IntentUnknown
	}

	entities := extractEntities(query, symbolMap)
	confidence := confidenceMap[intent]
	if len(entities) == 0 {
		confidence = 0.5
	}

	return common.Classification{
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
	}
}

// modelClassify 模型路径。返回 false 表示结果不可用，调用方保留规则结果。
func (c *Classifier) modelClassify(ctx context.Context, query string, symbolMap map[string][]string, history []string) (common.Classification, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.model.Invoke(cctx, llm.RoleClassify, map[string]any{
		"query":                query,
		"symbol_name_map":      symbolMap,
		"conversation_history": history,
	})
	if err != nil {
		metrics.StageFallbackTotal.WithLabelValues(common.StageClassifier, common.FallbackCause(err)).Inc()
		c.logger.Warn("model classification failed, keeping rule result", "error", err)
		return common.Classification{}, false
	}

	var parsed struct {
		Intent     string   `json:"intent"`
		Entities   []string `json:"entities"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		metrics.StageFallbackTotal.WithLabelValues(common.StageClassifier, "malformed").Inc()
		c.logger.Warn("model classification output unparseable, keeping rule result", "error", err)
		return common.Classification{}, false
	}

	intent := common.Intent(parsed.Intent)
	switch intent {
	case common.IntentPortfolio, common.IntentMarket, common.IntentHybrid:
	default:
		return common.Classification{}, false
	}

	reverse := portfolio.ReverseSymbolMap(symbolMap)
	entities := make([]common.Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		entities = append(entities, normalizeMention(e, reverse))
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return common.Classification{
		Intent:     intent,
		Entities:   common.DedupeEntities(entities),
		Confidence: confidence,
	}, true
}

// extractEntities 从查询中提取标的：持仓名称变体 + 代码样式 token，
// 按查询中首次出现的位置排序，保证同一查询的实体顺序可复现
func extractEntities(query string, symbolMap map[string][]string) []common.Entity {
	type hit struct {
		pos    int
		entity common.Entity
	}
	var hits []hit
	lower := strings.ToLower(query)

	reverse := portfolio.ReverseSymbolMap(symbolMap)
	for variant, symbol := range reverse {
		if pos := indexWord(lower, variant); pos >= 0 {
			hits = append(hits, hit{pos: pos, entity: common.NewEntity(symbol)})
		}
	}

	for _, loc := range tickerToken.FindAllStringIndex(query, -1) {
		token := query[loc[0]:loc[1]]
		if tickerStopwords[token] {
			continue
		}
		if len(symbolMap) > 0 {
			if _, held := symbolMap[token]; !held && len(token) < 2 {
				continue
			}
		}
		if normalized, ok := common.NormalizeTicker(token); ok {
			hits = append(hits, hit{pos: loc[0], entity: common.NewEntity(normalized)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].entity.Symbol < hits[j].entity.Symbol
	})

	entities := make([]common.Entity, 0, len(hits))
	for _, h := range hits {
		entities = append(entities, h.entity)
	}
	return common.DedupeEntities(entities)
}

// normalizeMention 归一化单个提及：符号表 → 代码样式，都不中则保留占位
func normalizeMention(mention string, reverse map[string]string) common.Entity {
	trimmed := strings.TrimSpace(mention)
	if symbol, ok := reverse[strings.ToLower(trimmed)]; ok {
		return common.NewEntity(symbol)
	}
	if normalized, ok := common.NormalizeTicker(trimmed); ok {
		return common.NewEntity(normalized)
	}
	return common.UnresolvedEntity(trimmed)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// indexWord 按词边界查找，避免 "own" 命中 "down" 这类子串；未命中返回 -1
func indexWord(s, word string) int {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return -1
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !isWordChar(s[start-1])
		rightOK := end == len(s) || !isWordChar(s[end])
		if leftOK && rightOK {
			return start
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
