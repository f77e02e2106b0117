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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// MemoryStore 内存持仓存储，数据来自 CSV 固定文件或直接写入
type MemoryStore struct {
	mu       sync.RWMutex
	holdings map[string][]Holding
}

// NewMemoryStore 创建空的内存持仓存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holdings: make(map[string][]Holding)}
}

// Holdings 按客户取全部持仓
func (s *MemoryStore) Holdings(ctx context.Context, clientID string) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.holdings[clientID]
	out := make([]Holding, len(list))
	copy(out, list)
	return out, nil
}

// Put 写入客户持仓（覆盖）
func (s *MemoryStore) Put(clientID string, holdings []Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[clientID] = holdings
}

// Close 无资源可释放
func (s *MemoryStore) Close() {}

// LoadCSV 从 CSV 文件加载持仓。
// 列：client_id,symbol,security_name,quantity,purchase_price,sector,asset_class
func (s *MemoryStore) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.loadCSV(f)
}

func (s *MemoryStore) loadCSV(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"client_id", "symbol", "quantity", "purchase_price"} {
		if _, ok := col[required]; !ok {
			return fmt.Errorf("CSV missing required column %q", required)
		}
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	loaded := make(map[string][]Holding)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		qty, err := strconv.ParseFloat(get(record, "quantity"), 64)
		if err != nil {
			return fmt.Errorf("CSV line %d: invalid quantity: %w", line, err)
		}
		cost, err := strconv.ParseFloat(get(record, "purchase_price"), 64)
		if err != nil {
			return fmt.Errorf("CSV line %d: invalid purchase_price: %w", line, err)
		}

		h := Holding{
			ClientID: get(record, "client_id"),
			Symbol:   strings.ToUpper(get(record, "symbol")),
			Name:     get(record, "security_name"),
			Quantity: qty,
			AvgCost:  cost,
			Sector:   get(record, "sector"),
			Class:    get(record, "asset_class"),
		}
		loaded[h.ClientID] = append(loaded[h.ClientID], h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for clientID, list := range loaded {
		s.holdings[clientID] = list
	}
	return nil
}
