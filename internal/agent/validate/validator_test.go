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

package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func sampleTrace() *trace.Trace {
	t := trace.New("run-1", "client-1")
	t.Append(common.StageClassifier, map[string]any{"query": "how is MSFT doing"}, map[string]any{"intent": "portfolio"})
	t.Append(common.StageResponse, nil, map[string]any{"text": "MSFT is up 70.54%."})
	return t
}

func TestValidate_Pass(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, `{"result": "pass"}`, nil)
	validator := New(model, time.Second, testLogger())

	result := validator.Validate(context.Background(), sampleTrace(), common.Response{Text: "MSFT is up 70.54%."})

	assert.True(t, result.Passed())
	assert.False(t, result.Defaulted)
}

func TestValidate_Fail(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, `{"result": "fail", "failed_stage": "planner", "reason": "plan ignored the comparison"}`, nil)
	validator := New(model, time.Second, testLogger())

	result := validator.Validate(context.Background(), sampleTrace(), common.Response{Text: "answer"})

	assert.False(t, result.Passed())
	assert.Equal(t, common.StagePlanner, result.FailedStage)
	assert.Equal(t, "plan ignored the comparison", result.Reason)
}

func TestValidate_UnknownResultTreatedAsPass(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, `{"result": "maybe"}`, nil)
	validator := New(model, time.Second, testLogger())

	result := validator.Validate(context.Background(), sampleTrace(), common.Response{Text: "answer"})
	assert.True(t, result.Passed())
	assert.False(t, result.Defaulted)
}

func TestValidate_UnknownFailedStageNormalized(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, `{"result": "fail", "failed_stage": "banana", "reason": "x"}`, nil)
	validator := New(model, time.Second, testLogger())

	result := validator.Validate(context.Background(), sampleTrace(), common.Response{Text: "answer"})
	assert.Equal(t, common.StageResponse, result.FailedStage)
}

func TestValidate_DefaultPassOnModelError(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, "", common.ErrCollaboratorTimeout)
	validator := New(model, time.Second, testLogger())

	tr := sampleTrace()
	before := tr.Len()
	result := validator.Validate(context.Background(), tr, common.Response{Text: "answer"})

	assert.True(t, result.Passed())
	assert.True(t, result.Defaulted)

	// 默认放行在轨迹里留下告警记录
	records := tr.Records()
	require.Equal(t, before+1, len(records))
	assert.Contains(t, records[len(records)-1].Warning, "defaulted to pass")
}

func TestValidate_DefaultPassOnMalformedOutput(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, "not json at all", nil)
	validator := New(model, time.Second, testLogger())

	result := validator.Validate(context.Background(), sampleTrace(), common.Response{Text: "answer"})
	assert.True(t, result.Passed())
	assert.True(t, result.Defaulted)
}

func TestDefaultPassMonitor_Window(t *testing.T) {
	m := NewDefaultPassMonitor(10, 0.2)

	// 窗口未满不报警
	for i := 0; i < 9; i++ {
		_, alert := m.Observe(true)
		assert.False(t, alert)
	}

	rate, alert := m.Observe(true)
	assert.True(t, alert)
	assert.Equal(t, 1.0, rate)

	// 窗口滚动后旧记录被挤出
	for i := 0; i < 10; i++ {
		m.Observe(false)
	}
	assert.Equal(t, 0.0, m.Rate())
}

func TestDefaultPassMonitor_BelowThreshold(t *testing.T) {
	m := NewDefaultPassMonitor(10, 0.2)
	for i := 0; i < 9; i++ {
		m.Observe(false)
	}
	_, alert := m.Observe(true)
	assert.False(t, alert) // 1/10 = 0.1 <= 0.2
}
