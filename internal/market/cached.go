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

package market

import (
	"context"
	"strings"

	"advisor-platform/internal/storage/cache"
	"advisor-platform/pkg/metrics"
)

// CachedProvider 包装任意 Provider，按命名空间 TTL 读穿写穿。
// 缓存读写失败不影响请求，直接回源。
type CachedProvider struct {
	inner Provider
	store cache.Store
	ttls  cache.TTLs
}

// NewCachedProvider 创建带缓存的提供方
func NewCachedProvider(inner Provider, store cache.Store, ttls cache.TTLs) *CachedProvider {
	return &CachedProvider{inner: inner, store: store, ttls: ttls}
}

// Price 价格读穿缓存
func (p *CachedProvider) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.Key(cache.NamespacePrice, symbol)

	var cached float64
	if err := p.store.Get(ctx, key, &cached); err == nil {
		metrics.CacheHitTotal.WithLabelValues(cache.NamespacePrice).Inc()
		return cached, nil
	}
	metrics.CacheMissTotal.WithLabelValues(cache.NamespacePrice).Inc()

	price, err := p.inner.Price(ctx, symbol)
	if err != nil {
		return 0, err
	}
	_ = p.store.Set(ctx, key, price, p.ttls.For(cache.NamespacePrice))
	return price, nil
}

// Headlines 新闻读穿缓存
func (p *CachedProvider) Headlines(ctx context.Context, symbol string, max int) ([]Headline, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.Key(cache.NamespaceNews, symbol)

	var cached []Headline
	if err := p.store.Get(ctx, key, &cached); err == nil {
		metrics.CacheHitTotal.WithLabelValues(cache.NamespaceNews).Inc()
		return clipHeadlines(cached, max), nil
	}
	metrics.CacheMissTotal.WithLabelValues(cache.NamespaceNews).Inc()

	headlines, err := p.inner.Headlines(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	_ = p.store.Set(ctx, key, headlines, p.ttls.For(cache.NamespaceNews))
	return clipHeadlines(headlines, max), nil
}

// Filings 申报读穿缓存
func (p *CachedProvider) Filings(ctx context.Context, symbol string, max int) ([]Filing, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.Key(cache.NamespaceFilings, symbol)

	var cached []Filing
	if err := p.store.Get(ctx, key, &cached); err == nil {
		metrics.CacheHitTotal.WithLabelValues(cache.NamespaceFilings).Inc()
		return clipFilings(cached, max), nil
	}
	metrics.CacheMissTotal.WithLabelValues(cache.NamespaceFilings).Inc()

	filings, err := p.inner.Filings(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	_ = p.store.Set(ctx, key, filings, p.ttls.For(cache.NamespaceFilings))
	return clipFilings(filings, max), nil
}

func clipHeadlines(list []Headline, max int) []Headline {
	if max > 0 && len(list) > max {
		return list[:max]
	}
	return list
}

func clipFilings(list []Filing, max int) []Filing {
	if max > 0 && len(list) > max {
		return list[:max]
	}
	return list
}
