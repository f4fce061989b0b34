// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集仓库操作和系统指标.
//
// Example:
//
//	import "github.com/yeisme/photovault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RepoOpCounter.WithLabelValues("document", "PutAsset", "ok").Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/photovault/pkg/configs"
	nlog "github.com/yeisme/photovault/pkg/log"
)

// 全局指标变量.
var (
	// RepoOpCounter 仓库操作计数器.
	RepoOpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_operations_total",
			Help: "Total number of asset repository operations",
		},
		[]string{"backend", "op", "status"},
	)

	// RepoOpDuration 仓库操作持续时间.
	RepoOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_operation_duration_seconds",
			Help:    "Asset repository operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	// CatalogAssets 目录内资产总数.
	CatalogAssets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_assets",
			Help: "Number of assets in the catalog",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
)

// InitMetrics 初始化Metrics.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	// 注册标准收集器
	if config.RuntimeMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// 注册自定义指标
	registry.MustRegister(RepoOpCounter, RepoOpDuration, CatalogAssets)

	return nil
}

// StartMetricsServer 启动Metrics HTTP服务器（agent 模式）.
func StartMetricsServer(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	srv := &http.Server{
		Addr:              config.Endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nlog.Logger().Error().Err(err).Msg("metrics server stopped")
		}
	}()

	nlog.Logger().Info().Str("endpoint", config.Endpoint).Msg("metrics server started")

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// NewCounter 创建新的计数器指标.
func NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
	registry.MustRegister(counter)

	return counter
}

// NewGauge 创建新的仪表盘指标.
func NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
	registry.MustRegister(gauge)

	return gauge
}
