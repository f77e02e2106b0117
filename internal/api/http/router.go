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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"advisor-platform/internal/api/http/middleware"
	"advisor-platform/pkg/log"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware

	// RateLimitRPS 全局限流，<= 0 不限流
	RateLimitRPS float64

	// AccessLogger 非空时启用请求日志中间件
	AccessLogger *log.Logger
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Build 构建 Hertz Server 并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	options := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(options...)

	h.Use(r.middleware.CORS())
	if r.RateLimitRPS > 0 {
		h.Use(r.middleware.RateLimit(r.RateLimitRPS, 0))
	}
	if r.AccessLogger != nil {
		h.Use(r.middleware.RequestLog(r.AccessLogger))
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/query", r.handler.Query)
	api.GET("/sessions/:client_id/:session_id", r.handler.GetSession)
	api.PUT("/sessions/:client_id/:session_id", r.handler.PutSession)
	api.DELETE("/sessions/:client_id/:session_id", r.handler.DeleteSession)
	api.GET("/runs/:run_id/trace", r.handler.GetTrace)

	system := api.Group("/system")
	system.GET("/metrics", r.handler.Metrics)

	return h
}
