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
	"context"
	"errors"
	"fmt"
)

// 流水线错误分类。三类都在阶段内走确定性降级，不会到达调用方；
// 数据缺失与校验失败走 StageResult 状态而非 error。
var (
	ErrCollaboratorTimeout         = errors.New("collaborator timeout")
	ErrCollaboratorMalformedOutput = errors.New("collaborator malformed output")
	ErrInvalidPlan                 = errors.New("invalid plan")
)

// StageError 阶段错误结构体
type StageError struct {
	Stage   string
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[pipeline] %s 阶段错误: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[pipeline] %s 阶段错误: %s", e.Stage, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError 创建阶段错误
func NewStageError(stage string, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// FallbackCause 将协作方错误归类为降级原因标签（超时与显式失败等价对待）
func FallbackCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrCollaboratorTimeout):
		return "timeout"
	case errors.Is(err, ErrCollaboratorMalformedOutput):
		return "malformed"
	default:
		return "error"
	}
}
