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
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "advisor-platform/pkg/errors"
)

// StorePg Postgres 实现的会话存储，记录整体存为 JSONB
type StorePg struct {
	pool *pgxpool.Pool
}

// NewStorePg 创建基于 PostgreSQL 的会话存储
func NewStorePg(ctx context.Context, dsn string) (*StorePg, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "解析会话库 DSN")
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "连接会话库")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "会话库连通性检查")
	}
	return &StorePg{pool: pool}, nil
}

// Close 关闭连接池
func (s *StorePg) Close() {
	s.pool.Close()
}

// Get 取会话记录，不存在时返回 nil
func (s *StorePg) Get(ctx context.Context, clientID, sessionID string) (*Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM sessions WHERE client_id = $1 AND session_id = $2`,
		clientID, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Put 写入会话记录
func (s *StorePg) Put(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (client_id, session_id, record, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (client_id, session_id) DO UPDATE SET record = $3, updated_at = $4`,
		record.ClientID, record.SessionID, data, time.Now())
	return err
}

// Delete 删除会话记录
func (s *StorePg) Delete(ctx context.Context, clientID, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE client_id = $1 AND session_id = $2`,
		clientID, sessionID)
	return err
}
