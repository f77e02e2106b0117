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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-platform/internal/agent/classify"
	"advisor-platform/internal/agent/marketdata"
	"advisor-platform/internal/agent/plan"
	"advisor-platform/internal/agent/portfoliodata"
	"advisor-platform/internal/agent/respond"
	"advisor-platform/internal/agent/validate"
	"advisor-platform/internal/api/http/middleware"
	"advisor-platform/internal/engine"
	"advisor-platform/internal/market"
	"advisor-platform/internal/model/llm"
	"advisor-platform/internal/portfolio"
	"advisor-platform/internal/session"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/log"
)

func testLogger() *log.Logger {
	logger, _ := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	return logger
}

// newTestServer 装配全内存栈：脚本化模型 + 静态行情 + 内存会话
func newTestServer(t *testing.T) func(method, path string, body []byte) *ut.ResponseRecorder {
	t.Helper()

	logger := testLogger()
	model := llm.NewScriptedClient().
		Script(llm.RoleValidate, `{"result": "pass"}`, nil)

	provider := market.NewMockProvider()
	holdings := portfolio.NewMemoryStore()
	holdings.Put("client-1", []portfolio.Holding{
		{ClientID: "client-1", Symbol: "MSFT", Name: "Microsoft Corporation", Quantity: 30, AvgCost: 300, Sector: "Technology", Class: "Equity"},
	})

	sessions := session.NewManager(session.NewMemoryStore(), 5)
	sink := trace.NewMemorySink()

	eng := engine.New(engine.Options{
		Classifier: classify.New(model, 0.7, time.Second, logger),
		Planner:    plan.New(model, time.Second, logger),
		Market:     marketdata.New(provider, 3, 2, time.Second, logger),
		Portfolio:  portfoliodata.New(holdings, time.Second, logger),
		Responder:  respond.New(model, time.Second, logger),
		Validator:  validate.New(model, time.Second, logger),
		Sessions:   sessions,
		Prices:     provider.Price,
		SymbolMap: func(ctx context.Context, clientID string) (map[string][]string, error) {
			hs, err := holdings.Holdings(ctx, clientID)
			if err != nil {
				return nil, err
			}
			return portfolio.BuildSymbolMap(hs), nil
		},
		TraceSink: sink,
		Logger:    logger,
	})

	handler := NewHandler(eng, sessions, sink, logger)
	router := NewRouter(handler, middleware.NewMiddleware())
	h := router.Build(":0")

	return func(method, path string, body []byte) *ut.ResponseRecorder {
		return ut.PerformRequest(h.Engine, method, path,
			&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
			ut.Header{Key: "Content-Type", Value: "application/json"})
	}
}

func TestQuery_EndToEnd(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"query": "how is my portfolio doing", "client_id": "client-1", "session_id": "s1"}`)
	w := perform("POST", "/api/query", body)
	require.Equal(t, 200, w.Result().StatusCode())

	var result engine.Result
	require.NoError(t, json.Unmarshal(w.Result().Body(), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, result.Text, "MSFT")
	assert.False(t, result.Unvalidated)
}

func TestQuery_MissingClientID(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"query": "how is my portfolio doing"}`)
	w := perform("POST", "/api/query", body)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestQuery_MissingQuery(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"client_id": "client-1"}`)
	w := perform("POST", "/api/query", body)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestQuery_TraceRetrievable(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"query": "what are my returns", "client_id": "client-1", "session_id": "s1"}`)
	w := perform("POST", "/api/query", body)
	require.Equal(t, 200, w.Result().StatusCode())

	var result engine.Result
	require.NoError(t, json.Unmarshal(w.Result().Body(), &result))

	w = perform("GET", "/api/runs/"+result.RunID+"/trace", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	var tr struct {
		RunID   string `json:"run_id"`
		Records []struct {
			Stage string `json:"stage"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &tr))
	assert.Equal(t, result.RunID, tr.RunID)
	assert.NotEmpty(t, tr.Records)
}

func TestSession_RoundTrip(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"query": "what are my returns", "client_id": "client-1", "session_id": "s1"}`)
	w := perform("POST", "/api/query", body)
	require.Equal(t, 200, w.Result().StatusCode())

	w = perform("GET", "/api/sessions/client-1/s1", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	var record session.Record
	require.NoError(t, json.Unmarshal(w.Result().Body(), &record))
	require.Len(t, record.Turns, 1)
	assert.Equal(t, "what are my returns", record.Turns[0].Query)

	// 快照可以原样恢复到另一个会话
	snapshot, err := json.Marshal(record)
	require.NoError(t, err)
	w = perform("PUT", "/api/sessions/client-1/s2", snapshot)
	require.Equal(t, 200, w.Result().StatusCode())

	w = perform("GET", "/api/sessions/client-1/s2", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	var restored session.Record
	require.NoError(t, json.Unmarshal(w.Result().Body(), &restored))
	assert.Len(t, restored.Turns, 1)
}

func TestSession_Clear(t *testing.T) {
	perform := newTestServer(t)

	body := []byte(`{"query": "what are my returns", "client_id": "client-1", "session_id": "s1"}`)
	w := perform("POST", "/api/query", body)
	require.Equal(t, 200, w.Result().StatusCode())

	w = perform("DELETE", "/api/sessions/client-1/s1", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	// 清除后快照回到空记录
	w = perform("GET", "/api/sessions/client-1/s1", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	var record session.Record
	require.NoError(t, json.Unmarshal(w.Result().Body(), &record))
	assert.Empty(t, record.Turns)
}

func TestMetricsEndpoint(t *testing.T) {
	perform := newTestServer(t)

	w := perform("GET", "/api/system/metrics", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "advisor_")
}

func TestHealthEndpoint(t *testing.T) {
	perform := newTestServer(t)

	w := perform("GET", "/api/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestUnknownRoute(t *testing.T) {
	perform := newTestServer(t)

	w := perform("GET", "/api/nope", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}
