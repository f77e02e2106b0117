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
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"advisor-platform/internal/pipeline/common"
)

// OpenAIClient OpenAI 兼容客户端
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL。
// 不做客户端重试：阶段超时内失败直接进入该阶段的本地降级。
func NewOpenAIClient(provider, model, apiKey, baseURL string) (*OpenAIClient, error) {
	if provider == "" {
		provider = "openai"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(0)

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// Invoke 以指定角色调用模型并抽取 JSON 输出
func (c *OpenAIClient) Invoke(ctx context.Context, role Role, input map[string]any) (json.RawMessage, error) {
	userContent, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model input: %w", err)
	}

	request := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": rolePrompt(role)},
			{"role": "user", "content": string(userContent)},
		},
		"temperature": 0.0,
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s call: %v", common.ErrCollaboratorTimeout, role, err)
		}
		return nil, fmt.Errorf("调用模型 API failed: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("模型 API 返回错误: %s", response.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: 解析模型响应failed: %v", common.ErrCollaboratorMalformedOutput, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: 模型没有返回结果", common.ErrCollaboratorMalformedOutput)
	}

	return ExtractJSON(result.Choices[0].Message.Content)
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}

// ExtractJSON 从模型输出中抽取最外层 JSON 对象。
// 模型常在 JSON 前后包裹说明文字或 markdown 代码块，按首个 { 和末个 } 截取。
func ExtractJSON(content string) (json.RawMessage, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: 输出中没有 JSON 对象", common.ErrCollaboratorMalformedOutput)
	}
	raw := json.RawMessage(content[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: JSON 片段无法解析", common.ErrCollaboratorMalformedOutput)
	}
	return raw, nil
}
