/*
 * @module service/monitoring/metrics_collector
 * @description 指标收集器，记录数据接入、公平性评分、告警发现和报告耗时，并提供运行时系统指标
 * @architecture 分层架构 - 基础设施层
 * @stateFlow 业务事件 -> 指标更新 -> /metrics 暴露
 * @rules 所有指标注册在收集器自己的 Registry 上，便于测试隔离
 * @dependencies github.com/prometheus/client_golang
 * @refs service/audit/audit_service.go, main.go
 */

package monitoring

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairness-audit-service/service/disparity"
)

// 接入行结果标签
const (
	OutcomeAccepted       = "accepted"
	OutcomeDroppedDate    = "dropped_invalid_date"
	OutcomeDroppedUnknown = "dropped_unknown_demographic"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	registry      *prometheus.Registry
	ingestRows    *prometheus.CounterVec
	loadFailures  *prometheus.CounterVec
	datasetSize   prometheus.Gauge
	scores        *prometheus.GaugeVec
	findings      *prometheus.CounterVec
	reportSeconds prometheus.Histogram
	startedAt     time.Time
}

// SystemMetrics 系统指标
type SystemMetrics struct {
	Timestamp      time.Time `json:"timestamp"`
	GoroutineCount int       `json:"goroutine_count"` // Goroutine数量
	HeapSize       uint64    `json:"heap_size"`       // 堆内存大小
	NumGC          uint32    `json:"num_gc"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
}

// NewMetricsCollector 创建指标收集器实例
func NewMetricsCollector() *MetricsCollector {
	c := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		ingestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fairness_ingest_rows_total",
			Help: "接入的原始行数，按处理结果分类",
		}, []string{"outcome"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fairness_load_failures_total",
			Help: "数据集加载失败次数，按错误类型分类",
		}, []string{"error_type"}),
		datasetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fairness_dataset_records",
			Help: "当前数据集的规范记录数",
		}),
		scores: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fairness_score",
			Help: "最近一次全量审计的公平性评分",
		}, []string{"component"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fairness_findings_total",
			Help: "触发的告警发现数量",
		}, []string{"rule", "severity"}),
		reportSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fairness_report_seconds",
			Help:    "差异报告计算耗时",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		startedAt: time.Now(),
	}

	c.registry.MustRegister(
		c.ingestRows, c.loadFailures, c.datasetSize, c.scores, c.findings, c.reportSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry 指标注册表
func (c *MetricsCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler /metrics 处理器
func (c *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveIngest 记录一次成功加载的行统计
func (c *MetricsCollector) ObserveIngest(accepted, droppedDate, droppedUnknown, records int) {
	c.ingestRows.WithLabelValues(OutcomeAccepted).Add(float64(accepted))
	c.ingestRows.WithLabelValues(OutcomeDroppedDate).Add(float64(droppedDate))
	c.ingestRows.WithLabelValues(OutcomeDroppedUnknown).Add(float64(droppedUnknown))
	c.datasetSize.Set(float64(records))
}

// ObserveLoadFailure 记录一次加载失败
func (c *MetricsCollector) ObserveLoadFailure(errorType string) {
	c.loadFailures.WithLabelValues(errorType).Inc()
}

// ObserveScores 更新评分
func (c *MetricsCollector) ObserveScores(s disparity.Scores) {
	c.scores.WithLabelValues("representation").Set(s.Representation)
	c.scores.WithLabelValues("disposition").Set(s.Disposition)
	c.scores.WithLabelValues("sentencing").Set(s.Sentencing)
	c.scores.WithLabelValues("duration").Set(s.Duration)
	c.scores.WithLabelValues("composite").Set(s.Composite)
}

// ObserveFinding 记录一条触发的发现
func (c *MetricsCollector) ObserveFinding(rule, severity string) {
	c.findings.WithLabelValues(rule, severity).Inc()
}

// ObserveReport 记录报告耗时
func (c *MetricsCollector) ObserveReport(elapsed time.Duration) {
	c.reportSeconds.Observe(elapsed.Seconds())
}

// CollectSystemMetrics 收集系统指标
func (c *MetricsCollector) CollectSystemMetrics() *SystemMetrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemMetrics{
		Timestamp:      time.Now(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapSize:       memStats.HeapAlloc,
		NumGC:          memStats.NumGC,
		UptimeSeconds:  time.Since(c.startedAt).Seconds(),
	}
}
