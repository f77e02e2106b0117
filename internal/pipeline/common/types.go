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

package common

import (
	"regexp"
	"strings"
)

// Intent 查询意图分类
type Intent string

const (
	IntentPortfolio Intent = "portfolio"
	IntentMarket    Intent = "market"
	IntentHybrid    Intent = "hybrid"
	IntentUnknown   Intent = "unknown"
)

// 阶段标识符（trace 与校验共用）
const (
	StageClassifier = "classifier"
	StagePlanner    = "planner"
	StageMarket     = "market"
	StagePortfolio  = "portfolio"
	StageResponse   = "response"
	StageValidator  = "validator"
)

// Entity 从查询或会话历史归一化得到的标的。
// 无法归一化的提及保留为 Unresolved 占位，下游据此提示用户而非静默丢弃。
type Entity struct {
	Symbol     string `json:"symbol"`
	Unresolved bool   `json:"unresolved,omitempty"`
	Mention    string `json:"mention,omitempty"`
}

// NewEntity 创建已归一化的标的
func NewEntity(symbol string) Entity {
	return Entity{Symbol: strings.ToUpper(symbol)}
}

// UnresolvedEntity 创建未归一化占位
func UnresolvedEntity(mention string) Entity {
	return Entity{Mention: mention, Unresolved: true}
}

// Classification 分类结果：一次 Run 只产出一次，之后只读
type Classification struct {
	Intent     Intent   `json:"intent"`
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// Symbols 返回已归一化标的代码（保持首次出现顺序）
func (c Classification) Symbols() []string {
	out := make([]string, 0, len(c.Entities))
	for _, e := range c.Entities {
		if !e.Unresolved {
			out = append(out, e.Symbol)
		}
	}
	return out
}

// Operation 计划中的单个数据操作
type Operation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// 数据操作名（与持仓计算器一一对应）
const (
	OpGetReturns           = "get_returns"
	OpComparePerformance   = "compare_performance"
	OpGetBestPerformers    = "get_best_performers"
	OpGetWorstPerformers   = "get_worst_performers"
	OpGetWeightInPortfolio = "get_weight_in_portfolio"
	OpGetAllocation        = "get_allocation"
	OpGetHoldings          = "get_holdings"
)

// ExecutionPlan 规划结果：有序 agent 列表 + 数据操作列表
type ExecutionPlan struct {
	Intent             Intent      `json:"intent"`
	Entities           []Entity    `json:"entities"`
	Agents             []string    `json:"agents"`
	Operations         []Operation `json:"operations"`
	NeedsClarification bool        `json:"needs_clarification,omitempty"`
	Clarification      string      `json:"clarification,omitempty"`
}

// Symbols 返回计划内已归一化标的代码
func (p ExecutionPlan) Symbols() []string {
	return Classification{Entities: p.Entities}.Symbols()
}

// HasAgent 判断计划是否包含某个数据阶段
func (p ExecutionPlan) HasAgent(name string) bool {
	for _, a := range p.Agents {
		if a == name {
			return true
		}
	}
	return false
}

// StageStatus 数据阶段结果状态
type StageStatus string

const (
	StatusSuccess  StageStatus = "success"
	StatusPartial  StageStatus = "partial"
	StatusNotFound StageStatus = "not_found"
	StatusFailure  StageStatus = "failure"
)

// StageResult 数据阶段结果。每个请求过的标的都在 Payload 中有键，
// 即使值为空，下游可区分“取过但为空”与“未尝试”。
type StageResult struct {
	Status      StageStatus    `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	MissingKeys []string       `json:"missing_keys,omitempty"`
	Message     string         `json:"message,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// Success 全部标的解析成功
func Success(payload map[string]any) StageResult {
	return StageResult{Status: StatusSuccess, Payload: payload}
}

// Partial 部分标的解析失败
func Partial(payload map[string]any, missing []string) StageResult {
	return StageResult{Status: StatusPartial, Payload: payload, MissingKeys: missing}
}

// NotFoundResult 查询成立但无数据
func NotFoundResult(message string) StageResult {
	return StageResult{Status: StatusNotFound, Message: message, Payload: map[string]any{}}
}

// FailureResult 阶段级失败
func FailureResult(reason string) StageResult {
	return StageResult{Status: StatusFailure, Reason: reason, Payload: map[string]any{}}
}

// OK 是否产出了可用数据
func (r StageResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}

// Response 最终回答：自然语言 + 结构化数据快照
type Response struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
}

// 校验结果常量
const (
	ValidationPass = "pass"
	ValidationFail = "fail"
)

// ValidationResult 校验阶段结果。Defaulted 标记“默认通过”，
// 监控侧据此区分真实通过与超时/输出无效导致的放行。
type ValidationResult struct {
	Result      string `json:"validation_result"`
	FailedStage string `json:"failed_stage,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Defaulted   bool   `json:"defaulted,omitempty"`
}

// Passed 是否通过校验
func (v ValidationResult) Passed() bool {
	return v.Result != ValidationFail
}

// Request 引擎入口请求
type Request struct {
	Query     string `json:"query"`
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,5}$`)

// NormalizeTicker 归一化标的代码：大写、1–5 位字母数字；不符合返回 false
func NormalizeTicker(s string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if tickerPattern.MatchString(t) {
		return t, true
	}
	return "", false
}

// DedupeEntities 去重并保持首次出现顺序
func DedupeEntities(list []Entity) []Entity {
	seen := make(map[string]bool, len(list))
	out := make([]Entity, 0, len(list))
	for _, e := range list {
		key := e.Symbol
		if e.Unresolved {
			key = "?" + strings.ToLower(e.Mention)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
