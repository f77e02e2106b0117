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

// Package trace 记录一次问答运行中每个阶段的输入输出快照。
// 轨迹只追加不修改，供校验阶段回看和问题排查使用。
package trace

import (
	"sync"
	"time"
)

// Record 单条阶段记录
type Record struct {
	Stage   string         `json:"stage"`
	Ordinal int            `json:"ordinal"`
	Input   map[string]any `json:"input,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
	Warning string         `json:"warning,omitempty"`
	At      time.Time      `json:"at"`
}

// Trace 一次运行的阶段轨迹
type Trace struct {
	RunID    string
	ClientID string

	mu      sync.Mutex
	records []Record
}

// New 创建空轨迹
func New(runID, clientID string) *Trace {
	return &Trace{RunID: runID, ClientID: clientID}
}

// Append 追加一条阶段记录，序号自动递增
func (t *Trace) Append(stage string, input, output map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, Record{
		Stage:   stage,
		Ordinal: len(t.records),
		Input:   input,
		Output:  output,
		At:      time.Now(),
	})
}

// Warn 追加一条带告警的记录（如校验器默认通过）
func (t *Trace) Warn(stage, warning string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, Record{
		Stage:   stage,
		Ordinal: len(t.records),
		Warning: warning,
		At:      time.Now(),
	})
}

// Records 返回当前记录的副本
func (t *Trace) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len 当前记录数
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
