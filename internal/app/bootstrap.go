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

// Package app 统一初始化：供 cmd/api 等入口复用，避免在 cmd 内写装配逻辑
package app

import (
	"context"
	"fmt"

	"advisor-platform/internal/market"
	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/portfolio"
	"advisor-platform/internal/session"
	"advisor-platform/internal/storage/cache"
	"advisor-platform/pkg/config"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/secrets"
)

// Bootstrap 公共依赖集合
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Secrets   secrets.Store
	Cache     cache.Store
	Market    market.Provider
	Portfolio portfolio.Store
	Sessions  *session.Manager
	Model     llm.Client
}

// NewBootstrap 根据配置装配公共依赖
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret 存储failed: %w", err)
	}

	cacheStore, err := cache.NewCache(cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存failed: %w", err)
	}

	marketCfg := cfg.Market
	if marketCfg.APIKey == "" {
		if key, err := secretStore.Get(ctx, "FINNHUB_API_KEY"); err == nil {
			marketCfg.APIKey = key
		}
	}
	provider, err := market.NewProvider(marketCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化行情数据源failed: %w", err)
	}
	cachedProvider := market.NewCachedProvider(provider, cacheStore, cache.TTLsFromConfig(cfg.Storage.Cache))

	portfolioStore, err := portfolio.NewStore(ctx, cfg.Portfolio)
	if err != nil {
		return nil, fmt.Errorf("初始化持仓存储failed: %w", err)
	}

	sessionStore, err := session.NewStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储failed: %w", err)
	}
	maxTurns := cfg.Session.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	sessions := session.NewManager(sessionStore, maxTurns)

	modelCfg := cfg.Model
	if modelCfg.APIKey == "" {
		if key, err := secretStore.Get(ctx, "OPENAI_API_KEY"); err == nil {
			modelCfg.APIKey = key
		}
	}
	model, err := llm.NewClient(modelCfg.Provider, modelCfg.Model, modelCfg.APIKey, modelCfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("初始化模型客户端failed: %w", err)
	}
	if modelCfg.RequestsPerMinute > 0 {
		limiter := llm.NewRateLimiter(modelCfg.RequestsPerMinute, modelCfg.MaxConcurrent)
		model = llm.NewRateLimitedClient(model, limiter)
	}

	return &Bootstrap{
		Config:    cfg,
		Logger:    logger,
		Secrets:   secretStore,
		Cache:     cacheStore,
		Market:    cachedProvider,
		Portfolio: portfolioStore,
		Sessions:  sessions,
		Model:     model,
	}, nil
}

// Close 释放底层资源
func (b *Bootstrap) Close() {
	if b.Sessions != nil {
		b.Sessions.Close()
	}
	if b.Portfolio != nil {
		b.Portfolio.Close()
	}
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
}
