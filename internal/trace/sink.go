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

package trace

import (
	"sync"

	"advisor-platform/pkg/log"
)

// Sink 轨迹落地接口。调用方不等待也不感知落地结果，
// 落地失败不影响问答运行。
type Sink interface {
	Emit(t *Trace)
}

// LogSink 把整条轨迹写入结构化日志
type LogSink struct {
	logger *log.Logger
}

// NewLogSink 创建日志落地
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit 逐条输出阶段记录
func (s *LogSink) Emit(t *Trace) {
	for _, r := range t.Records() {
		if r.Warning != "" {
			s.logger.Warn("trace record",
				"run_id", t.RunID,
				"client_id", t.ClientID,
				"stage", r.Stage,
				"ordinal", r.Ordinal,
				"warning", r.Warning,
			)
			continue
		}
		s.logger.Info("trace record",
			"run_id", t.RunID,
			"client_id", t.ClientID,
			"stage", r.Stage,
			"ordinal", r.Ordinal,
			"input", r.Input,
			"output", r.Output,
		)
	}
}

// MemorySink 在内存中按 RunID 保留轨迹，测试与调试用
type MemorySink struct {
	mu     sync.Mutex
	traces map[string]*Trace
}

// NewMemorySink 创建内存落地
func NewMemorySink() *MemorySink {
	return &MemorySink{traces: make(map[string]*Trace)}
}

// Emit 保存轨迹
func (s *MemorySink) Emit(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.RunID] = t
}

// Get 按 RunID 取回轨迹
func (s *MemorySink) Get(runID string) (*Trace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[runID]
	return t, ok
}
