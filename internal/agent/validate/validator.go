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

// Package validate 产出校验阶段。
// 校验器只读运行轨迹，不触碰任何数据源；
// 校验模型自身超时或输出无效时默认放行，但记录 Defaulted 标记，
// 并由滑动窗口监控默认放行率。
package validate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// Validator 产出校验阶段
type Validator struct {
	model   llm.Client
	timeout time.Duration
	logger  *log.Logger
	monitor *DefaultPassMonitor
}

// New 创建校验阶段
func New(model llm.Client, timeout time.Duration, logger *log.Logger) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		model:   model,
		timeout: timeout,
		logger:  logger,
		monitor: NewDefaultPassMonitor(50, 0.2),
	}
}

// ConfigureMonitor 按配置调整默认放行率监控的窗口与阈值
func (v *Validator) ConfigureMonitor(window int, threshold float64) {
	if threshold <= 0 {
		threshold = 0.2
	}
	v.monitor = NewDefaultPassMonitor(window, threshold)
}

// Name 阶段标识
func (v *Validator) Name() string {
	return common.StageValidator
}

// Validate 基于运行轨迹校验最终回答
func (v *Validator) Validate(ctx context.Context, t *trace.Trace, response common.Response) common.ValidationResult {
	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	input := map[string]any{
		"trace":  t.Records(),
		"answer": response.Text,
	}

	start := time.Now()
	raw, err := v.model.Invoke(cctx, llm.RoleValidate, input)
	metrics.CollaboratorDuration.WithLabelValues("model").Observe(time.Since(start).Seconds())
	if err != nil {
		return v.defaultPass(t, err.Error())
	}

	var out struct {
		Result      string `json:"result"`
		FailedStage string `json:"failed_stage"`
		Reason      string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v.defaultPass(t, "校验器输出无法解析: "+err.Error())
	}

	result := v.normalize(out.Result, out.FailedStage, out.Reason)
	metrics.ValidatorOutcomeTotal.WithLabelValues(result.Result).Inc()
	v.observe(result.Defaulted)
	return result
}

// normalize 把模型输出收敛到固定字段。
// 非 fail 的一律按 pass 处理，failed_stage 不认识时归到 response。
func (v *Validator) normalize(result, failedStage, reason string) common.ValidationResult {
	if result != common.ValidationFail {
		return common.ValidationResult{Result: common.ValidationPass}
	}
	switch failedStage {
	case common.StageClassifier, common.StagePlanner, common.StageMarket,
		common.StagePortfolio, common.StageResponse:
	default:
		failedStage = common.StageResponse
	}
	return common.ValidationResult{
		Result:      common.ValidationFail,
		FailedStage: failedStage,
		Reason:      reason,
	}
}

// defaultPass 校验器自身失败时放行，留痕并计数
func (v *Validator) defaultPass(t *trace.Trace, reason string) common.ValidationResult {
	v.logger.Warn("validator defaulted to pass", "reason", reason)
	t.Warn(common.StageValidator, "validation defaulted to pass: "+reason)
	metrics.ValidatorDefaultPassTotal.Inc()
	metrics.ValidatorOutcomeTotal.WithLabelValues(common.ValidationPass).Inc()
	v.observe(true)
	return common.ValidationResult{Result: common.ValidationPass, Defaulted: true}
}

func (v *Validator) observe(defaulted bool) {
	if rate, alert := v.monitor.Observe(defaulted); alert {
		v.logger.Error("validator default-pass rate above threshold",
			"rate", rate, "window", v.monitor.window, "threshold", v.monitor.threshold)
	}
}

// DefaultPassMonitor 滑动窗口内默认放行率监控。
// 窗口内默认放行占比超过阈值时报警，防止校验长期形同虚设。
type DefaultPassMonitor struct {
	window    int
	threshold float64

	mu        sync.Mutex
	outcomes  []bool
	next      int
	filled    bool
	defaulted int
}

// NewDefaultPassMonitor 创建监控器
func NewDefaultPassMonitor(window int, threshold float64) *DefaultPassMonitor {
	if window <= 0 {
		window = 50
	}
	return &DefaultPassMonitor{
		window:    window,
		threshold: threshold,
		outcomes:  make([]bool, window),
	}
}

// Observe 记录一次校验结果，返回当前默认放行率与是否越限。
// 窗口未满时不报警。
func (m *DefaultPassMonitor) Observe(defaulted bool) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.filled && m.outcomes[m.next] {
		m.defaulted--
	}
	m.outcomes[m.next] = defaulted
	if defaulted {
		m.defaulted++
	}
	m.next++
	if m.next == m.window {
		m.next = 0
		m.filled = true
	}

	size := m.window
	if !m.filled {
		size = m.next
	}
	rate := float64(m.defaulted) / float64(size)
	return rate, m.filled && rate > m.threshold
}

// Rate 当前窗口内的默认放行率
func (m *DefaultPassMonitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.window
	if !m.filled {
		size = m.next
	}
	if size == 0 {
		return 0
	}
	return float64(m.defaulted) / float64(size)
}
