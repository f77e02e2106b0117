package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestRecord_AppendTurnTruncates(t *testing.T) {
	r := &Record{ClientID: "c", SessionID: "s"}
	for i := 0; i < 8; i++ {
		r.AppendTurn(Turn{Query: fmt.Sprintf("q%d", i), Response: fmt.Sprintf("r%d", i)}, 5)
	}
	if len(r.Turns) != 5 {
		t.Fatalf("历史应截断到 5 轮，实际 %d", len(r.Turns))
	}
	if r.Turns[0].Query != "q3" {
		t.Errorf("应淘汰最旧轮次，首轮为 %s", r.Turns[0].Query)
	}
	if r.TurnCount != 8 {
		t.Errorf("TurnCount 应累计全部轮次，实际 %d", r.TurnCount)
	}
}

func TestMemoryStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Get(ctx, "c", "s")
	if err != nil || got != nil {
		t.Fatalf("不存在的会话应返回 nil: %v %v", got, err)
	}

	record := &Record{ClientID: "c", SessionID: "s", SymbolMap: map[string][]string{"MSFT": {"microsoft"}}}
	if err := s.Put(ctx, record); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err = s.Get(ctx, "c", "s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SymbolMap["MSFT"][0] != "microsoft" {
		t.Errorf("SymbolMap = %v", got.SymbolMap)
	}

	// 返回的是快照，修改不影响存储
	got.SymbolMap["MSFT"][0] = "mutated"
	again, _ := s.Get(ctx, "c", "s")
	if again.SymbolMap["MSFT"][0] != "microsoft" {
		t.Error("Get 应返回独立副本")
	}

	if err := s.Delete(ctx, "c", "s"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Get(ctx, "c", "s"); got != nil {
		t.Error("删除后应返回 nil")
	}
}

func TestManager_Commit(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 5)

	err := m.Commit(ctx, "c", "s", Turn{Query: "how is MSFT doing", Response: "MSFT is up 70.54%"},
		map[string]any{"MSFT": map[string]any{"pct_return": 70.54}}, nil,
		map[string][]string{"MSFT": {"microsoft"}})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	record, err := m.Snapshot(ctx, "c", "s")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(record.Turns) != 1 {
		t.Fatalf("期望 1 轮历史，实际 %d", len(record.Turns))
	}
	if record.LastPortfolioResult == nil {
		t.Error("LastPortfolioResult 应已写入")
	}
	if record.LastMarketResult != nil {
		t.Error("未传入的 LastMarketResult 应保持为空")
	}

	// nil 参数保留原值
	if err := m.Commit(ctx, "c", "s", Turn{Query: "and apple?", Response: "..."}, nil, nil, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	record, _ = m.Snapshot(ctx, "c", "s")
	if record.LastPortfolioResult == nil {
		t.Error("nil 参数不应清掉原有结果")
	}
	if len(record.Turns) != 2 {
		t.Errorf("期望 2 轮历史，实际 %d", len(record.Turns))
	}
}

func TestManager_Clear(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 5)

	if err := m.Commit(ctx, "c", "s", Turn{Query: "q", Response: "r"}, nil, nil, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := m.Clear(ctx, "c", "s"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	record, err := m.Snapshot(ctx, "c", "s")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(record.Turns) != 0 {
		t.Errorf("清除后应为空记录，实际 %d 轮", len(record.Turns))
	}
}

func TestManager_ConcurrentCommitsSameSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Commit(ctx, "c", "s", Turn{Query: fmt.Sprintf("q%d", i)}, nil, nil, nil)
		}(i)
	}
	wg.Wait()

	record, err := m.Snapshot(ctx, "c", "s")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(record.Turns) != 20 {
		t.Errorf("并发写入不应丢轮次：期望 20，实际 %d", len(record.Turns))
	}
}

func TestRecord_History(t *testing.T) {
	r := &Record{}
	r.AppendTurn(Turn{Query: "q1", Response: "r1"}, 5)
	h := r.History()
	if len(h) != 1 || h[0] != "User: q1\nAssistant: r1" {
		t.Errorf("History = %v", h)
	}
}
