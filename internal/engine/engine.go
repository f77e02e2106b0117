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

// Package engine 问答流水线的编排核心。
// 状态机：分类 → 规划 → 数据获取（市场先于持仓）→ 合成 → 校验。
// 校验不通过时从失败阶段重入一次；再次失败则带 unvalidated 标记返回
// 尽力而为的回答。协作方故障在各阶段内部就地降级，不上抛到调用方。
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/session"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// ErrMissingClientID 请求缺少客户标识。流水线里唯一的硬错误。
var ErrMissingClientID = errors.New("engine: client_id is required")

// Classifier 意图分类阶段
type Classifier interface {
	Classify(ctx context.Context, query string, symbolMap map[string][]string, history []string) common.Classification
}

// Planner 执行计划阶段
type Planner interface {
	Plan(ctx context.Context, cls common.Classification, query string, history []string) common.ExecutionPlan
}

// DataStage 数据获取阶段（市场 / 持仓）
type DataStage interface {
	Name() string
	Fetch(ctx context.Context, plan common.ExecutionPlan, prices *common.PriceBook, clientID string) common.StageResult
}

// Responder 回答合成阶段
type Responder interface {
	Synthesize(ctx context.Context, query string, history []string, results map[string]common.StageResult) common.Response
}

// Validator 产出校验阶段
type Validator interface {
	Validate(ctx context.Context, t *trace.Trace, response common.Response) common.ValidationResult
}

// SymbolMapFunc 按客户构建公司名到标的代码的映射
type SymbolMapFunc func(ctx context.Context, clientID string) (map[string][]string, error)

// Options 引擎依赖
type Options struct {
	Classifier Classifier
	Planner    Planner
	Market     DataStage
	Portfolio  DataStage
	Responder  Responder
	Validator  Validator
	Sessions   *session.Manager
	Prices     common.PriceFunc
	SymbolMap  SymbolMapFunc
	TraceSink  trace.Sink
	Logger     *log.Logger

	// HistoryTurns 传给各阶段的历史轮数上限，<= 0 不限
	HistoryTurns int
}

// Engine 问答流水线
type Engine struct {
	opts Options
}

// New 创建引擎
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Result 一次问答的最终产出
type Result struct {
	RunID              string                  `json:"run_id"`
	Text               string                  `json:"text"`
	Data               map[string]any          `json:"data,omitempty"`
	Intent             common.Intent           `json:"intent"`
	Validation         common.ValidationResult `json:"validation"`
	Unvalidated        bool                    `json:"unvalidated,omitempty"`
	NeedsClarification bool                    `json:"needs_clarification,omitempty"`
}

// runState 一次运行的中间产物，重入时按阶段复用
type runState struct {
	query   string
	history []string
	symbols map[string][]string

	cls     common.Classification
	plan    common.ExecutionPlan
	results map[string]common.StageResult
	resp    common.Response
	prices  *common.PriceBook
}

// 阶段顺序；重入从失败阶段起全部重跑
var stageOrder = []string{
	common.StageClassifier,
	common.StagePlanner,
	common.StageMarket,
	common.StagePortfolio,
	common.StageResponse,
}

func stageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return 0
}

// Handle 处理一次问答请求
func (e *Engine) Handle(ctx context.Context, req common.Request) (*Result, error) {
	if req.ClientID == "" {
		return nil, ErrMissingClientID
	}

	start := time.Now()
	runID := uuid.NewString()
	tr := trace.New(runID, req.ClientID)
	defer e.emit(tr)

	record, err := e.opts.Sessions.Snapshot(ctx, req.ClientID, req.SessionID)
	if err != nil {
		e.opts.Logger.Warn("session snapshot failed, starting fresh", "client_id", req.ClientID, "error", err)
		record = &session.Record{ClientID: req.ClientID, SessionID: req.SessionID}
	}

	history := record.History()
	if n := e.opts.HistoryTurns; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	state := &runState{
		query:   req.Query,
		history: history,
		symbols: e.symbolMap(ctx, req.ClientID, record),
		results: make(map[string]common.StageResult),
		prices:  common.NewPriceBook(e.opts.Prices),
	}

	e.runFrom(ctx, tr, state, common.StageClassifier, req.ClientID)

	result := &Result{
		RunID:  runID,
		Intent: state.cls.Intent,
	}

	// 规划要求澄清时直接返回，不再走数据与校验
	if state.plan.NeedsClarification {
		result.Text = state.plan.Clarification
		result.NeedsClarification = true
		result.Validation = common.ValidationResult{Result: common.ValidationPass}
		e.finish(ctx, req, state, result, start, "pass")
		return result, nil
	}

	validation := e.opts.Validator.Validate(ctx, tr, state.resp)
	tr.Append(common.StageValidator, nil, map[string]any{
		"result":       validation.Result,
		"failed_stage": validation.FailedStage,
		"defaulted":    validation.Defaulted,
	})

	if !validation.Passed() {
		// 有界重试：从校验点名的阶段重入一次
		e.opts.Logger.Info("validation failed, retrying from stage",
			"run_id", runID, "failed_stage", validation.FailedStage, "reason", validation.Reason)
		e.runFrom(ctx, tr, state, validation.FailedStage, req.ClientID)

		// 重入途径规划阶段时，新计划可能转为要求澄清
		if state.plan.NeedsClarification {
			result.Text = state.plan.Clarification
			result.NeedsClarification = true
			result.Validation = common.ValidationResult{Result: common.ValidationPass}
			e.finish(ctx, req, state, result, start, "pass")
			return result, nil
		}

		validation = e.opts.Validator.Validate(ctx, tr, state.resp)
		tr.Append(common.StageValidator, nil, map[string]any{
			"result":       validation.Result,
			"failed_stage": validation.FailedStage,
			"defaulted":    validation.Defaulted,
			"retry":        true,
		})
	}

	result.Text = state.resp.Text
	result.Data = state.resp.Data
	result.Validation = validation

	outcome := validation.Result
	if !validation.Passed() {
		// 第二次仍未通过：返回尽力而为的回答并明确标注未经校验
		result.Unvalidated = true
		result.Text = state.resp.Text + "\n\n(Note: this answer could not be fully validated.)"
		outcome = "unvalidated"
	}

	e.finish(ctx, req, state, result, start, outcome)
	return result, nil
}

// runFrom 从 from 阶段起顺序执行到合成为止，之前阶段的产物原样复用
func (e *Engine) runFrom(ctx context.Context, tr *trace.Trace, state *runState, from string, clientID string) {
	startIdx := stageIndex(from)

	for _, stage := range stageOrder[startIdx:] {
		switch stage {
		case common.StageClassifier:
			state.cls = e.opts.Classifier.Classify(ctx, state.query, state.symbols, state.history)
			tr.Append(common.StageClassifier,
				map[string]any{"query": state.query},
				map[string]any{
					"intent":     string(state.cls.Intent),
					"entities":   state.cls.Symbols(),
					"confidence": state.cls.Confidence,
				})

		case common.StagePlanner:
			state.plan = e.opts.Planner.Plan(ctx, state.cls, state.query, state.history)
			tr.Append(common.StagePlanner,
				map[string]any{"intent": string(state.cls.Intent)},
				map[string]any{
					"agents":              state.plan.Agents,
					"operations":          state.plan.Operations,
					"needs_clarification": state.plan.NeedsClarification,
				})
			if state.plan.NeedsClarification {
				return
			}

		case common.StageMarket:
			if !state.plan.HasAgent(common.StageMarket) {
				continue
			}
			result := e.opts.Market.Fetch(ctx, state.plan, state.prices, clientID)
			state.results[common.StageMarket] = result
			tr.Append(common.StageMarket,
				map[string]any{"entities": state.plan.Symbols()},
				map[string]any{"status": string(result.Status), "missing": result.MissingKeys})

		case common.StagePortfolio:
			if !state.plan.HasAgent(common.StagePortfolio) {
				continue
			}
			result := e.opts.Portfolio.Fetch(ctx, state.plan, state.prices, clientID)
			state.results[common.StagePortfolio] = result
			tr.Append(common.StagePortfolio,
				map[string]any{"operations": state.plan.Operations},
				map[string]any{"status": string(result.Status), "missing": result.MissingKeys})

		case common.StageResponse:
			state.resp = e.opts.Responder.Synthesize(ctx, state.query, state.history, state.results)
			tr.Append(common.StageResponse, nil, map[string]any{"text": state.resp.Text})
		}
	}
}

// finish 收尾：指标上报，未被取消时提交会话
func (e *Engine) finish(ctx context.Context, req common.Request, state *runState, result *Result, start time.Time, outcome string) {
	intent := string(state.cls.Intent)
	if intent == "" {
		intent = string(common.IntentUnknown)
	}
	metrics.RunDuration.WithLabelValues(intent).Observe(time.Since(start).Seconds())
	metrics.RunTotal.WithLabelValues(intent, outcome).Inc()

	// 运行被取消时跳过会话更新，半途状态不落库
	if ctx.Err() != nil {
		e.opts.Logger.Warn("run cancelled, skipping session update", "run_id", result.RunID)
		return
	}

	var lastPortfolio, lastMarket map[string]any
	if r, ok := state.results[common.StagePortfolio]; ok {
		lastPortfolio = r.Payload
	}
	if r, ok := state.results[common.StageMarket]; ok {
		lastMarket = r.Payload
	}

	err := e.opts.Sessions.Commit(ctx, req.ClientID, req.SessionID,
		session.Turn{Query: req.Query, Response: result.Text},
		lastPortfolio, lastMarket, state.symbols)
	if err != nil {
		e.opts.Logger.Error("session commit failed", "run_id", result.RunID, "error", err)
	}
}

// symbolMap 优先按当前持仓构建符号映射，失败时退回会话里的上一份
func (e *Engine) symbolMap(ctx context.Context, clientID string, record *session.Record) map[string][]string {
	if e.opts.SymbolMap != nil {
		if m, err := e.opts.SymbolMap(ctx, clientID); err == nil && len(m) > 0 {
			return m
		}
	}
	return record.SymbolMap
}

func (e *Engine) emit(tr *trace.Trace) {
	if e.opts.TraceSink == nil {
		return
	}
	e.opts.TraceSink.Emit(tr)
}
