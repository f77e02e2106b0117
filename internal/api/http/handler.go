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
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"advisor-platform/internal/engine"
	"advisor-platform/internal/pipeline/common"
	"advisor-platform/internal/session"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/log"
	"advisor-platform/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	engine   *engine.Engine
	sessions *session.Manager
	traces   *trace.MemorySink
	logger   *log.Logger
}

// NewHandler 创建 HTTP 处理器。traces 可为 nil，此时轨迹查询接口返回 404。
func NewHandler(eng *engine.Engine, sessions *session.Manager, traces *trace.MemorySink, logger *log.Logger) *Handler {
	return &Handler{
		engine:   eng,
		sessions: sessions,
		traces:   traces,
		logger:   logger,
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "advisor-api",
	})
}

// queryRequest POST /api/query 请求体。
// Session 可携带外部保存的会话快照，服务端在处理前恢复。
type queryRequest struct {
	Query     string          `json:"query"`
	ClientID  string          `json:"client_id"`
	SessionID string          `json:"session_id"`
	Session   *session.Record `json:"session,omitempty"`
}

// Query 处理投资问答请求
// POST /api/query
func (h *Handler) Query(c context.Context, ctx *app.RequestContext) {
	var req queryRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}
	if req.Query == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "query is required",
		})
		return
	}

	// 宿主层传入的会话快照先落库再执行
	if req.Session != nil {
		req.Session.ClientID = req.ClientID
		req.Session.SessionID = req.SessionID
		if err := h.sessions.Restore(c, req.Session); err != nil {
			h.logger.Warn("恢复会话快照失败", "client_id", req.ClientID, "error", err)
		}
	}

	result, err := h.engine.Handle(c, common.Request{
		Query:     req.Query,
		ClientID:  req.ClientID,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, engine.ErrMissingClientID) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{
				"error": "client_id is required",
			})
			return
		}
		h.logger.Error("查询处理失败", "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "query failed",
		})
		return
	}

	ctx.JSON(consts.StatusOK, result)
}

// GetSession 导出会话快照（宿主层跨进程保存会话用）
// GET /api/sessions/:client_id/:session_id
func (h *Handler) GetSession(c context.Context, ctx *app.RequestContext) {
	clientID := ctx.Param("client_id")
	sessionID := ctx.Param("session_id")

	record, err := h.sessions.Snapshot(c, clientID, sessionID)
	if err != nil {
		h.logger.Error("读取会话失败", "client_id", clientID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to load session",
		})
		return
	}
	ctx.JSON(consts.StatusOK, record)
}

// PutSession 恢复会话快照
// PUT /api/sessions/:client_id/:session_id
func (h *Handler) PutSession(c context.Context, ctx *app.RequestContext) {
	var record session.Record
	if err := ctx.BindJSON(&record); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid session body",
		})
		return
	}
	record.ClientID = ctx.Param("client_id")
	record.SessionID = ctx.Param("session_id")

	if err := h.sessions.Restore(c, &record); err != nil {
		h.logger.Error("恢复会话失败", "client_id", record.ClientID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to restore session",
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// DeleteSession 清除会话记录
// DELETE /api/sessions/:client_id/:session_id
func (h *Handler) DeleteSession(c context.Context, ctx *app.RequestContext) {
	clientID := ctx.Param("client_id")
	sessionID := ctx.Param("session_id")

	if err := h.sessions.Clear(c, clientID, sessionID); err != nil {
		h.logger.Error("清除会话失败", "client_id", clientID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to clear session",
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "cleared"})
}

// GetTrace 查询一次运行的审计轨迹
// GET /api/runs/:run_id/trace
func (h *Handler) GetTrace(c context.Context, ctx *app.RequestContext) {
	if h.traces == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "trace store not enabled",
		})
		return
	}
	runID := ctx.Param("run_id")
	tr, ok := h.traces.Get(runID)
	if !ok {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"run_id":    tr.RunID,
		"client_id": tr.ClientID,
		"records":   tr.Records(),
	})
}

// Metrics Prometheus 文本格式指标
// GET /api/system/metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to gather metrics",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
