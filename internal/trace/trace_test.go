package trace

import (
	"testing"
)

func TestTrace_AppendOrdinal(t *testing.T) {
	tr := New("run-1", "client-1")
	tr.Append("classifier", map[string]any{"query": "how is MSFT doing"}, map[string]any{"intent": "portfolio"})
	tr.Append("planner", nil, map[string]any{"agents": []string{"portfolio"}})
	tr.Warn("validator", "validator output malformed, defaulting to pass")

	recs := tr.Records()
	if len(recs) != 3 {
		t.Fatalf("期望 3 条记录，实际 %d", len(recs))
	}
	for i, r := range recs {
		if r.Ordinal != i {
			t.Errorf("记录 %d 序号为 %d", i, r.Ordinal)
		}
	}
	if recs[2].Warning == "" {
		t.Error("告警记录应有 Warning 字段")
	}
}

func TestTrace_RecordsCopy(t *testing.T) {
	tr := New("run-1", "c")
	tr.Append("classifier", nil, nil)
	recs := tr.Records()
	recs[0].Stage = "mutated"
	if tr.Records()[0].Stage != "classifier" {
		t.Error("Records 应返回副本")
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	tr := New("run-xyz", "c")
	tr.Append("planner", nil, nil)
	sink.Emit(tr)

	got, ok := sink.Get("run-xyz")
	if !ok {
		t.Fatal("应能取回轨迹")
	}
	if got.Len() != 1 {
		t.Errorf("轨迹记录数 %d", got.Len())
	}
	if _, ok := sink.Get("missing"); ok {
		t.Error("不存在的 RunID 不应命中")
	}
}
