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

package cache

import (
	"fmt"
	"time"

	"advisor-platform/pkg/config"
)

// NewCache 根据配置创建缓存
func NewCache(cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TTLsFromConfig 解析各命名空间 TTL，空值取默认
func TTLsFromConfig(cfg config.CacheConfig) TTLs {
	return TTLs{
		Price:   config.ParseDuration(cfg.PriceTTL, 60*time.Second),
		News:    config.ParseDuration(cfg.NewsTTL, 15*time.Minute),
		Filings: config.ParseDuration(cfg.FilingsTTL, 24*time.Hour),
		Plan:    config.ParseDuration(cfg.PlanTTL, 5*time.Minute),
	}
}
