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
	"sync"
	"time"
)

// Manager 会话管理器。同一 (client, session) 的写入串行化，
// 不同会话完全独立并行。
type Manager struct {
	store    Store
	maxTurns int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager 创建会话管理器。maxTurns 为历史轮次上限，0 表示不截断。
func NewManager(store Store, maxTurns int) *Manager {
	return &Manager{
		store:    store,
		maxTurns: maxTurns,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(clientID, sessionID string) *sync.Mutex {
	key := sessionKey(clientID, sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Snapshot 取会话记录快照，不存在时返回空记录
func (m *Manager) Snapshot(ctx context.Context, clientID, sessionID string) (*Record, error) {
	record, err := m.store.Get(ctx, clientID, sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &Record{ClientID: clientID, SessionID: sessionID}
	}
	return record, nil
}

// Restore 写入外部传入的会话快照（宿主层跨进程恢复会话用）
func (m *Manager) Restore(ctx context.Context, record *Record) error {
	l := m.lockFor(record.ClientID, record.SessionID)
	l.Lock()
	defer l.Unlock()
	return m.store.Put(ctx, record)
}

// Commit 一轮成功运行后的会话更新：追加轮次、替换最近结果、更新符号表。
// lastPortfolio/lastMarket/symbolMap 为 nil 时保留原值。
func (m *Manager) Commit(ctx context.Context, clientID, sessionID string, turn Turn,
	lastPortfolio, lastMarket map[string]any, symbolMap map[string][]string) error {

	l := m.lockFor(clientID, sessionID)
	l.Lock()
	defer l.Unlock()

	record, err := m.store.Get(ctx, clientID, sessionID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &Record{ClientID: clientID, SessionID: sessionID}
	}

	record.AppendTurn(turn, m.maxTurns)
	if lastPortfolio != nil {
		record.LastPortfolioResult = lastPortfolio
	}
	if lastMarket != nil {
		record.LastMarketResult = lastMarket
	}
	if symbolMap != nil {
		record.SymbolMap = symbolMap
	}
	record.LastAccess = time.Now()

	return m.store.Put(ctx, record)
}

// Clear 清除会话记录。写锁保留，避免与并发提交竞争。
func (m *Manager) Clear(ctx context.Context, clientID, sessionID string) error {
	l := m.lockFor(clientID, sessionID)
	l.Lock()
	defer l.Unlock()
	return m.store.Delete(ctx, clientID, sessionID)
}

// Close 关闭底层存储
func (m *Manager) Close() {
	m.store.Close()
}
