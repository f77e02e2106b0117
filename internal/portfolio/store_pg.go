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

package portfolio

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"advisor-platform/pkg/errors"
)

// StorePg Postgres 实现的持仓存储
type StorePg struct {
	pool *pgxpool.Pool
}

// NewStorePg 创建基于 PostgreSQL 的持仓存储
func NewStorePg(ctx context.Context, dsn string) (*StorePg, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "解析持仓库 DSN")
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "连接持仓库")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "持仓库连通性检查")
	}
	return &StorePg{pool: pool}, nil
}

// Close 关闭连接池
func (s *StorePg) Close() {
	s.pool.Close()
}

// Holdings 按客户取全部持仓，客户不存在时返回空列表
func (s *StorePg) Holdings(ctx context.Context, clientID string) ([]Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT client_id, symbol, COALESCE(security_name,''), quantity, purchase_price,
		 COALESCE(sector,''), COALESCE(asset_class,'')
		 FROM holdings WHERE client_id = $1 ORDER BY symbol`,
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ClientID, &h.Symbol, &h.Name, &h.Quantity, &h.AvgCost, &h.Sector, &h.Class); err != nil {
			return nil, err
		}
		h.Symbol = strings.ToUpper(h.Symbol)
		out = append(out, h)
	}
	return out, rows.Err()
}
