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
	"strings"
	"sync"
)

// PriceFunc 价格解析函数
type PriceFunc func(ctx context.Context, symbol string) (float64, error)

// PriceBook 一次运行内的价格快照。每个标的只解析一次，
// 同一次回答中的所有计算引用同一个价格。
type PriceBook struct {
	resolve PriceFunc

	mu     sync.Mutex
	prices map[string]float64
}

// NewPriceBook 创建价格快照
func NewPriceBook(resolve PriceFunc) *PriceBook {
	return &PriceBook{
		resolve: resolve,
		prices:  make(map[string]float64),
	}
}

// Price 取标的价格，首次访问时解析并记住
func (b *PriceBook) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	b.mu.Lock()
	if price, ok := b.prices[symbol]; ok {
		b.mu.Unlock()
		return price, nil
	}
	b.mu.Unlock()

	price, err := b.resolve(ctx, symbol)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	// 并发解析同一标的时保留先写入的值
	if existing, ok := b.prices[symbol]; ok {
		price = existing
	} else {
		b.prices[symbol] = price
	}
	b.mu.Unlock()
	return price, nil
}

// Resolve 批量解析一组标的，单个失败不阻塞其余
func (b *PriceBook) Resolve(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		price, err := b.Price(ctx, s)
		if err != nil {
			continue
		}
		out[strings.ToUpper(s)] = price
	}
	return out
}

// Snapshot 当前已解析价格的副本
func (b *PriceBook) Snapshot() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.prices))
	for k, v := range b.prices {
		out[k] = v
	}
	return out
}
