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

	"golang.org/x/time/rate"
)

// RateLimiter 模型调用限流：RPS + 并发控制
type RateLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建限流器。requestsPerMinute 或 maxConcurrent 为 0 时对应维度不限制。
func NewRateLimiter(requestsPerMinute float64, maxConcurrent int) *RateLimiter {
	l := &RateLimiter{}
	if requestsPerMinute > 0 {
		rps := requestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if maxConcurrent > 0 {
		l.semaphore = make(chan struct{}, maxConcurrent)
	}
	return l
}

// Wait 阻塞直到允许执行
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *RateLimiter) Release() {
	if l.semaphore != nil {
		select {
		case <-l.semaphore:
		default:
		}
	}
}

// RateLimitedClient 包装任意 Client，在真实调用前后执行限流控制
type RateLimitedClient struct {
	inner   Client
	limiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的客户端。limiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner Client, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

// Invoke 实现 Client.Invoke，调用前后执行限流
func (c *RateLimitedClient) Invoke(ctx context.Context, role Role, input map[string]any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}
	return c.inner.Invoke(ctx, role, input)
}

// Model 返回底层客户端的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层客户端的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
