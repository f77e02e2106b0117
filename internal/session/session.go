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

// Package session 按 (client, session) 维护跨轮次的会话记忆
package session

import (
	"context"
	"fmt"
	"time"

	"advisor-platform/pkg/config"
)

// Turn 一轮问答
type Turn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Record 会话记忆。历史轮次有界，最旧的先淘汰。
type Record struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`

	Turns               []Turn              `json:"turns,omitempty"`
	LastPortfolioResult map[string]any      `json:"last_portfolio_result,omitempty"`
	LastMarketResult    map[string]any      `json:"last_market_result,omitempty"`
	SymbolMap           map[string][]string `json:"symbol_map,omitempty"`

	TurnCount  int       `json:"turn_count"`
	LastAccess time.Time `json:"last_access"`
}

// AppendTurn 追加一轮问答并截断到 maxTurns
func (r *Record) AppendTurn(turn Turn, maxTurns int) {
	r.Turns = append(r.Turns, turn)
	if maxTurns > 0 && len(r.Turns) > maxTurns {
		r.Turns = r.Turns[len(r.Turns)-maxTurns:]
	}
	r.TurnCount++
	r.LastAccess = time.Now()
}

// History 历史轮次的格式化文本，供模型解析指代
func (r *Record) History() []string {
	out := make([]string, 0, len(r.Turns))
	for _, t := range r.Turns {
		out = append(out, fmt.Sprintf("User: %s\nAssistant: %s", t.Query, t.Response))
	}
	return out
}

// Store 会话存储接口
type Store interface {
	// Get 取会话记录，不存在时返回 nil
	Get(ctx context.Context, clientID, sessionID string) (*Record, error)
	// Put 写入会话记录（覆盖）
	Put(ctx context.Context, record *Record) error
	// Delete 删除会话记录
	Delete(ctx context.Context, clientID, sessionID string) error
	// Close 释放底层资源
	Close()
}

// NewStore 根据配置创建会话存储
func NewStore(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewStorePg(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}
