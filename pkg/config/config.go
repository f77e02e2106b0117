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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Model      ModelConfig      `mapstructure:"model"`
	Market     MarketConfig     `mapstructure:"market"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// EngineConfig 流水线引擎配置：各阶段模型调用预算与降级阈值
type EngineConfig struct {
	ClassifyTimeout string `mapstructure:"classify_timeout"` // 如 "5s"，空则默认 5s
	PlanTimeout     string `mapstructure:"plan_timeout"`
	RespondTimeout  string `mapstructure:"respond_timeout"`
	ValidateTimeout string `mapstructure:"validate_timeout"`

	// ConfidenceThreshold 规则分类置信度低于该值时走模型路径，<=0 默认 0.7
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// HistoryTurns 传给各阶段的会话历史轮数上限，<=0 默认 5
	HistoryTurns int `mapstructure:"history_turns"`

	// DefaultPassRate 校验默认通过率告警阈值（滑动窗口内占比），<=0 默认 0.2
	DefaultPassRate float64 `mapstructure:"default_pass_rate"`
	// DefaultPassWindow 滑动窗口大小（次数），<=0 默认 50
	DefaultPassWindow int `mapstructure:"default_pass_window"`
}

// ModelConfig 模型后端配置（OpenAI 兼容端点）
type ModelConfig struct {
	Provider          string  `mapstructure:"provider"` // openai | qwen | scripted
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"` // 支持 ${ENV_VAR} 形式
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // <=0 不限流
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// MarketConfig 行情数据提供方配置
type MarketConfig struct {
	Provider     string `mapstructure:"provider"` // finnhub | mock
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"` // 支持 ${ENV_VAR} 形式
	MaxHeadlines int    `mapstructure:"max_headlines"` // <=0 默认 3
	MaxFilings   int    `mapstructure:"max_filings"`   // <=0 默认 3
}

// PortfolioConfig 持仓数据存储配置
type PortfolioConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
	DataFile string `mapstructure:"data_file"` // memory 模式下的 CSV 数据文件，可选
}

// SessionConfig 会话记忆配置
type SessionConfig struct {
	Store    string `mapstructure:"store"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
	MaxTurns int    `mapstructure:"max_turns"` // 历史轮数上限，<=0 默认 5
}

// StorageConfig 存储配置
type StorageConfig struct {
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig 缓存配置（命名空间 TTL 控制各类数据的新鲜度）
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`

	PriceTTL   string `mapstructure:"price_ttl"`   // 空则默认 60s
	NewsTTL    string `mapstructure:"news_ttl"`    // 空则默认 15m
	FilingsTTL string `mapstructure:"filings_ttl"` // 空则默认 24h
	PlanTTL    string `mapstructure:"plan_ttl"`    // 空则默认 5m
}

// SecretsConfig Secret 存储配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置，便于引擎使用模型后端
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelCfg, err := LoadConfig("configs/model.yaml")
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

// replaceEnvVars 替换配置中 ${ENV_VAR} 形式的 API Key
func replaceEnvVars(config *Config) {
	config.Model.APIKey = resolveEnvRef(config.Model.APIKey)
	config.Market.APIKey = resolveEnvRef(config.Market.APIKey)
}

func resolveEnvRef(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return value
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
