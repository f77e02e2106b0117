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
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// 过期项后台清扫间隔。读路径是惰性过期，清扫只兜底从不再被读到的键。
const sweepInterval = 5 * time.Minute

// MemoryStore 内存缓存存储实现
type MemoryStore struct {
	items map[string]*cacheItem
	mu    sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// cacheItem 缓存项
type cacheItem struct {
	value      []byte
	expiration int64
}

// NewMemoryStore 创建新的内存缓存存储
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]*cacheItem),
		stop:  make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now().UnixNano())
		}
	}
}

func (s *MemoryStore) sweep(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, item := range s.items {
		if item.expiration > 0 && item.expiration < now {
			delete(s.items, key)
		}
	}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	var exp int64
	if expiration > 0 {
		exp = time.Now().Add(expiration).UnixNano()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &cacheItem{
		value:      data,
		expiration: exp,
	}
	return nil
}

// Get 获取缓存（惰性过期：读到过期项即删除）
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	item, exists := s.items[key]
	if exists && item.expiration > 0 && item.expiration < time.Now().UnixNano() {
		delete(s.items, key)
		exists = false
	}
	s.mu.Unlock()

	if !exists {
		return ErrCacheMiss
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Exists 检查缓存是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[key]
	if !exists {
		return false, nil
	}
	if item.expiration > 0 && item.expiration < time.Now().UnixNano() {
		return false, nil
	}
	return true, nil
}

// Clear 清除所有缓存
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*cacheItem)
	return nil
}

// Close 停止后台清扫
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
