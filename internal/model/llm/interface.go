package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role 模型调用角色，每个角色对应流水线中的一个阶段
type Role string

const (
	RoleClassify Role = "classify"
	RolePlan     Role = "plan"
	RoleRespond  Role = "respond"
	RoleValidate Role = "validate"
)

// Client 模型客户端接口。input 为阶段组装的结构化输入，
// 返回模型输出中的 JSON 片段；没有可解析的 JSON 时返回
// common.ErrCollaboratorMalformedOutput。
type Client interface {
	// Invoke 以指定角色调用模型
	Invoke(ctx context.Context, role Role, input map[string]any) (json.RawMessage, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// NewClient 创建模型客户端；OpenAI 兼容端点覆盖 openai 与 qwen 等提供商
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "", "openai", "qwen":
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}
}
