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

package respond

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-platform/internal/calc"
	"advisor-platform/internal/market"
	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

func portfolioResult() common.StageResult {
	return common.Success(map[string]any{
		"returns": []calc.Return{{
			Symbol:       "MSFT",
			Quantity:     30,
			AvgCost:      300,
			CurrentPrice: 511.61,
			Gain:         6348.30,
			PctReturn:    70.54,
		}},
		"total_value": 15348.30,
		"total_gain":  6348.30,
	})
}

func marketResult() common.StageResult {
	return common.Success(map[string]any{
		"MSFT": map[string]any{
			"latest_price": 511.61,
			"news": []market.Headline{{
				Title:  "Microsoft announces quarterly results",
				Source: "MockSource",
			}},
		},
	})
}

func TestSynthesize_ModelPath(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, `{"text": "MSFT is up 70.54% with a gain of $6348.30."}`, nil)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "how is MSFT doing", nil,
		map[string]common.StageResult{common.StagePortfolio: portfolioResult()})

	assert.Equal(t, "MSFT is up 70.54% with a gain of $6348.30.", resp.Text)
	require.Contains(t, resp.Data, "portfolio_data")
	assert.Equal(t, 1, model.CallCount(llm.RoleRespond))
}

func TestSynthesize_TemplateFallbackOnModelError(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, "", common.ErrCollaboratorTimeout)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "how is MSFT doing", nil,
		map[string]common.StageResult{common.StagePortfolio: portfolioResult()})

	assert.Contains(t, resp.Text, "MSFT")
	assert.Contains(t, resp.Text, "70.54")
	assert.Contains(t, resp.Text, "6348.30")
}

func TestSynthesize_TemplateFallbackOnEmptyText(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, `{"text": ""}`, nil)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "how is MSFT doing", nil,
		map[string]common.StageResult{common.StagePortfolio: portfolioResult()})

	assert.NotEmpty(t, resp.Text)
	assert.Contains(t, resp.Text, "MSFT")
}

func TestSynthesize_HybridOverlapSet(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, `{"text": "answer"}`, nil)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "news impact on my MSFT", nil,
		map[string]common.StageResult{
			common.StagePortfolio: portfolioResult(),
			common.StageMarket:    marketResult(),
		})

	overlap, ok := resp.Data["overlap"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"MSFT"}, overlap)

	// 模型输入里也带着 overlap 集
	require.Len(t, model.Inputs, 1)
	assert.Contains(t, model.Inputs[0], "overlap")
}

func TestSynthesize_MarketNotFoundNoted(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, "", common.ErrCollaboratorTimeout)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "any news on my holdings", nil,
		map[string]common.StageResult{
			common.StagePortfolio: portfolioResult(),
			common.StageMarket:    common.NotFoundResult("none tracked"),
		})

	assert.Contains(t, resp.Text, "No market data was available")
}

func TestSynthesize_NoDataAtAll(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, "", common.ErrCollaboratorTimeout)
	responder := New(model, time.Second, testLogger())

	resp := responder.Synthesize(context.Background(), "hello", nil, map[string]common.StageResult{})
	assert.Equal(t, "I could not find any data to answer that question.", resp.Text)
}

func TestSynthesize_UnratableHoldingInTemplate(t *testing.T) {
	model := llm.NewScriptedClient().
		Script(llm.RoleRespond, "", common.ErrCollaboratorTimeout)
	responder := New(model, time.Second, testLogger())

	result := common.Success(map[string]any{
		"returns": []calc.Return{{
			Symbol:       "GIFT",
			Quantity:     10,
			CurrentPrice: 25,
			Gain:         250,
			Unratable:    true,
		}},
	})

	resp := responder.Synthesize(context.Background(), "how is GIFT doing", nil,
		map[string]common.StageResult{common.StagePortfolio: result})

	assert.Contains(t, resp.Text, "percent return unavailable")
}
