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

// Package portfolio 客户持仓数据访问层
package portfolio

import (
	"context"
	"fmt"

	"advisor-platform/internal/calc"
	"advisor-platform/pkg/config"
)

// Holding 客户的单个持仓
type Holding struct {
	ClientID string  `json:"client_id"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"security_name"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"purchase_price"`
	Sector   string  `json:"sector,omitempty"`
	Class    string  `json:"asset_class,omitempty"`
}

// Store 持仓存储接口。客户不存在时返回空列表而非错误。
type Store interface {
	// Holdings 按客户取全部持仓
	Holdings(ctx context.Context, clientID string) ([]Holding, error)
	// Close 释放底层资源
	Close()
}

// NewStore 根据配置创建持仓存储
func NewStore(ctx context.Context, cfg config.PortfolioConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		store := NewMemoryStore()
		if cfg.DataFile != "" {
			if err := store.LoadCSV(cfg.DataFile); err != nil {
				return nil, fmt.Errorf("failed to load portfolio data file: %w", err)
			}
		}
		return store, nil
	case "postgres":
		return NewStorePg(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported portfolio store type: %s", cfg.Type)
	}
}

// ToPositions 转换为计算层的持仓表示
func ToPositions(holdings []Holding) []calc.Position {
	out := make([]calc.Position, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, calc.Position{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			AvgCost:  h.AvgCost,
			Sector:   h.Sector,
			Class:    h.Class,
		})
	}
	return out
}
