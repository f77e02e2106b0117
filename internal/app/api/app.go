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

// Package api API 应用：装配问答引擎与 HTTP 路由
package api

import (
	"context"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"advisor-platform/internal/agent/classify"
	"advisor-platform/internal/agent/marketdata"
	"advisor-platform/internal/agent/plan"
	"advisor-platform/internal/agent/portfoliodata"
	"advisor-platform/internal/agent/respond"
	"advisor-platform/internal/agent/validate"
	"advisor-platform/internal/api/http"
	"advisor-platform/internal/api/http/middleware"
	"advisor-platform/internal/app"
	"advisor-platform/internal/engine"
	"advisor-platform/internal/portfolio"
	"advisor-platform/internal/storage/cache"
	"advisor-platform/internal/trace"
	"advisor-platform/pkg/config"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用
type App struct {
	bootstrap    *app.Bootstrap
	engine       *engine.Engine
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	logger := bootstrap.Logger

	classifyTimeout := config.ParseDuration(cfg.Engine.ClassifyTimeout, 0)
	planTimeout := config.ParseDuration(cfg.Engine.PlanTimeout, 0)
	respondTimeout := config.ParseDuration(cfg.Engine.RespondTimeout, 0)
	validateTimeout := config.ParseDuration(cfg.Engine.ValidateTimeout, 0)
	stageTimeout := config.ParseDuration(cfg.API.Timeout, 0)

	traceSink := trace.NewMemorySink()

	planner := plan.New(bootstrap.Model, planTimeout, logger)
	planner.UseCache(bootstrap.Cache, cache.TTLsFromConfig(cfg.Storage.Cache).For(cache.NamespacePlan))

	validator := validate.New(bootstrap.Model, validateTimeout, logger)
	if cfg.Engine.DefaultPassWindow > 0 || cfg.Engine.DefaultPassRate > 0 {
		validator.ConfigureMonitor(cfg.Engine.DefaultPassWindow, cfg.Engine.DefaultPassRate)
	}

	eng := engine.New(engine.Options{
		Classifier: classify.New(bootstrap.Model, cfg.Engine.ConfidenceThreshold, classifyTimeout, logger),
		Planner:    planner,
		Market:     marketdata.New(bootstrap.Market, cfg.Market.MaxHeadlines, cfg.Market.MaxFilings, stageTimeout, logger),
		Portfolio:  portfoliodata.New(bootstrap.Portfolio, stageTimeout, logger),
		Responder:  respond.New(bootstrap.Model, respondTimeout, logger),
		Validator:  validator,
		Sessions:   bootstrap.Sessions,
		Prices:     bootstrap.Market.Price,
		SymbolMap: func(ctx context.Context, clientID string) (map[string][]string, error) {
			holdings, err := bootstrap.Portfolio.Holdings(ctx, clientID)
			if err != nil {
				return nil, err
			}
			return portfolio.BuildSymbolMap(holdings), nil
		},
		TraceSink:    traceSink,
		Logger:       logger,
		HistoryTurns: cfg.Engine.HistoryTurns,
	})

	handler := http.NewHandler(eng, bootstrap.Sessions, traceSink, logger)
	router := http.NewRouter(handler, middleware.NewMiddleware())
	router.AccessLogger = logger

	return &App{
		bootstrap: bootstrap,
		engine:    eng,
		router:    router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// Hertz 框架日志走 slog 扩展，与应用日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：链路追踪（OpenTelemetry）
	if cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "advisor-api"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		}
	}
	if a.hertz == nil {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	a.bootstrap.Close()
	return nil
}
