package classify

import (
	"context"
	"testing"
	"time"

	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/pkg/log"
)

var testSymbolMap = map[string][]string{
	"MSFT": {"microsoft corp", "microsoft"},
	"AAPL": {"apple inc", "apple"},
	"TSLA": {"tesla inc", "tesla"},
}

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func TestClassify_RulePortfolio(t *testing.T) {
	c := New(nil, 0.7, time.Second, testLogger())
	got := c.Classify(context.Background(), "what is the return on my MSFT holdings", testSymbolMap, nil)
	if got.Intent != common.IntentPortfolio {
		t.Errorf("intent = %s", got.Intent)
	}
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %.2f", got.Confidence)
	}
	if len(got.Entities) != 1 || got.Entities[0].Symbol != "MSFT" {
		t.Errorf("entities = %v", got.Entities)
	}
}

func TestClassify_RuleMarketAndHybrid(t *testing.T) {
	c := New(nil, 0.7, time.Second, testLogger())

	market := c.Classify(context.Background(), "any news about the Microsoft deal", testSymbolMap, nil)
	if market.Intent != common.IntentMarket {
		t.Errorf("market intent = %s", market.Intent)
	}
	if len(market.Entities) != 1 || market.Entities[0].Symbol != "MSFT" {
		t.Errorf("market entities = %v", market.Entities)
	}

	hybrid := c.Classify(context.Background(), "how does the Apple announcement impact my portfolio returns", testSymbolMap, nil)
	if hybrid.Intent != common.IntentHybrid {
		t.Errorf("hybrid intent = %s", hybrid.Intent)
	}
	if hybrid.Confidence != 0.9 {
		t.Errorf("hybrid confidence = %.2f", hybrid.Confidence)
	}
}

func TestClassify_NoEntitiesLowersConfidence(t *testing.T) {
	c := New(nil, 0.0, time.Second, testLogger())
	got := c.Classify(context.Background(), "how are my holdings performing", testSymbolMap, nil)
	if got.Intent != common.IntentPortfolio {
		t.Errorf("intent = %s", got.Intent)
	}
	if got.Confidence != 0.5 {
		t.Errorf("零实体时置信度应为 0.5，实际 %.2f", got.Confidence)
	}
}

func TestClassify_EntityOrderAndDedup(t *testing.T) {
	c := New(nil, 0.7, time.Second, testLogger())
	got := c.Classify(context.Background(), "compare TSLA performance with AAPL and TSLA again", testSymbolMap, nil)
	if len(got.Entities) != 2 {
		t.Fatalf("entities = %v", got.Entities)
	}
	if got.Entities[0].Symbol != "TSLA" || got.Entities[1].Symbol != "AAPL" {
		t.Errorf("应保持首次出现顺序: %v", got.Entities)
	}
}

func TestClassify_ModelFallbackUsedOnLowConfidence(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleClassify, `{"intent":"portfolio","entities":["apple"],"confidence":0.9}`, nil)
	c := New(model, 0.7, time.Second, testLogger())

	// 无关键词、无实体 → unknown 0.5 → 触发模型路径
	got := c.Classify(context.Background(), "and what about apple", testSymbolMap, nil)
	if got.Intent != common.IntentPortfolio {
		t.Errorf("intent = %s", got.Intent)
	}
	if len(got.Entities) != 1 || got.Entities[0].Symbol != "AAPL" {
		t.Errorf("模型返回的名称应归一化为代码: %v", got.Entities)
	}
	if model.CallCount(llm.RoleClassify) != 1 {
		t.Errorf("模型调用次数 = %d", model.CallCount(llm.RoleClassify))
	}
}

func TestClassify_ModelErrorKeepsRuleResult(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleClassify, "", common.ErrCollaboratorTimeout)
	c := New(model, 0.99, time.Second, testLogger())

	got := c.Classify(context.Background(), "what is the return on my MSFT holdings", testSymbolMap, nil)
	if got.Intent != common.IntentPortfolio {
		t.Errorf("模型失败时应保留规则结果，实际 %s", got.Intent)
	}
	if len(got.Entities) != 1 || got.Entities[0].Symbol != "MSFT" {
		t.Errorf("entities = %v", got.Entities)
	}
}

func TestClassify_ModelUnknownKeepsRuleResult(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleClassify, `{"intent":"unknown","entities":[],"confidence":0.0}`, nil)
	c := New(model, 0.99, time.Second, testLogger())

	got := c.Classify(context.Background(), "show my portfolio allocation", testSymbolMap, nil)
	if got.Intent != common.IntentPortfolio {
		t.Errorf("模型返回 unknown 时应保留规则结果，实际 %s", got.Intent)
	}
}

func TestClassify_UnresolvedMentionKept(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleClassify, `{"intent":"market","entities":["Some Obscure Fund"],"confidence":0.8}`, nil)
	c := New(model, 0.99, time.Second, testLogger())

	got := c.Classify(context.Background(), "latest news please", testSymbolMap, nil)
	if len(got.Entities) != 1 {
		t.Fatalf("entities = %v", got.Entities)
	}
	if !got.Entities[0].Unresolved || got.Entities[0].Mention != "Some Obscure Fund" {
		t.Errorf("无法归一化的提及应保留为占位: %+v", got.Entities[0])
	}
}

func TestIndexWord(t *testing.T) {
	if indexWord("i own some stock", "own") < 0 {
		t.Error("应匹配独立的 own")
	}
	if indexWord("the market is down", "own") >= 0 {
		t.Error("不应匹配 down 中的 own")
	}
}
