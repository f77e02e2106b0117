package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RunDuration, RunTotal, StageFallbackTotal,
		ValidatorOutcomeTotal, ValidatorDefaultPassTotal,
		CacheHitTotal, CacheMissTotal,
		CollaboratorDuration,
	)
}

// RunDuration 单次查询流水线耗时（秒）
var RunDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "advisor_run_duration_seconds",
		Help:    "查询流水线执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"intent"},
)

// RunTotal 查询总数（按意图与最终校验结果）
var RunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "advisor_run_total",
		Help: "查询总数（按意图与校验结果）",
	},
	[]string{"intent", "validation"}, // pass | fail | unvalidated
)

// StageFallbackTotal 阶段降级次数（模型路径失败转确定性规则）
var StageFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "advisor_stage_fallback_total",
		Help: "阶段降级到确定性规则的次数",
	},
	[]string{"stage", "cause"}, // timeout | malformed | error
)

// ValidatorOutcomeTotal 校验结果总数
var ValidatorOutcomeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "advisor_validator_outcome_total",
		Help: "校验结果总数（pass/fail）",
	},
	[]string{"result"},
)

// ValidatorDefaultPassTotal 默认通过次数（校验模型超时/输出无效时记录，用于监控静默放行率）
var ValidatorDefaultPassTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "advisor_validator_default_pass_total",
		Help: "校验因超时或无效输出而默认通过的次数",
	},
)

// CacheHitTotal 缓存命中次数（按命名空间）
var CacheHitTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "advisor_cache_hit_total",
		Help: "缓存命中次数",
	},
	[]string{"namespace"},
)

// CacheMissTotal 缓存未命中次数（按命名空间）
var CacheMissTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "advisor_cache_miss_total",
		Help: "缓存未命中次数",
	},
	[]string{"namespace"},
)

// CollaboratorDuration 外部协作方调用耗时（秒）
var CollaboratorDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "advisor_collaborator_duration_seconds",
		Help:    "外部协作方（模型/行情/持仓）调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"collaborator"}, // model | market | portfolio
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
