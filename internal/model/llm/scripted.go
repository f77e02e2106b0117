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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ScriptedStep 测试脚本中的一步
type ScriptedStep struct {
	Output string
	Err    error
}

// ScriptedClient 按角色回放预置输出的测试替身。
// 同一角色的多次调用按脚本顺序消费，脚本耗尽后复用最后一步。
type ScriptedClient struct {
	mu      sync.Mutex
	scripts map[Role][]ScriptedStep
	cursor  map[Role]int
	Calls   []Role
	Inputs  []map[string]any
}

// NewScriptedClient 创建测试替身
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		scripts: make(map[Role][]ScriptedStep),
		cursor:  make(map[Role]int),
	}
}

// Script 为角色追加一步脚本
func (c *ScriptedClient) Script(role Role, output string, err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[role] = append(c.scripts[role], ScriptedStep{Output: output, Err: err})
	return c
}

// Invoke 回放脚本
func (c *ScriptedClient) Invoke(ctx context.Context, role Role, input map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.Calls = append(c.Calls, role)
	c.Inputs = append(c.Inputs, input)
	steps := c.scripts[role]
	if len(steps) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("scripted client: no script for role %s", role)
	}
	i := c.cursor[role]
	if i >= len(steps) {
		i = len(steps) - 1
	}
	c.cursor[role]++
	step := steps[i]
	c.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	return ExtractJSON(step.Output)
}

// Model 返回固定模型名
func (c *ScriptedClient) Model() string { return "scripted" }

// Provider 返回固定提供商名
func (c *ScriptedClient) Provider() string { return "scripted" }

// CallCount 角色被调用的次数
func (c *ScriptedClient) CallCount(role Role) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.Calls {
		if r == role {
			n++
		}
	}
	return n
}
