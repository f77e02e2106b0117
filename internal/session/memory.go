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

package session

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore 内存会话存储。记录以 JSON 快照存取，
// 调用方拿到的是副本，互不影响。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func sessionKey(clientID, sessionID string) string {
	return clientID + "\x00" + sessionID
}

// Get 取会话记录，不存在时返回 nil
func (s *MemoryStore) Get(ctx context.Context, clientID, sessionID string) (*Record, error) {
	s.mu.RLock()
	data, ok := s.records[sessionKey(clientID, sessionID)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Put 写入会话记录
func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[sessionKey(record.ClientID, record.SessionID)] = data
	s.mu.Unlock()
	return nil
}

// Delete 删除会话记录
func (s *MemoryStore) Delete(ctx context.Context, clientID, sessionID string) error {
	s.mu.Lock()
	delete(s.records, sessionKey(clientID, sessionID))
	s.mu.Unlock()
	return nil
}

// Close 无资源可释放
func (s *MemoryStore) Close() {}
