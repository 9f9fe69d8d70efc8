/*
 * @module service/audit/report
 * @description 差异报告组装，组合筛选、指标计算和阈值告警
 * @architecture 纯函数
 * @stateFlow 记录集 -> 筛选 -> 指标 -> 发现 -> DisparityReport
 * @rules 相同输入得到相同报告；摄取输出中记录与错误互斥
 * @dependencies service/disparity, service/alerting, service/ingestion
 * @refs service.go
 */

package audit

import (
	"time"

	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/ingestion"
)

// IngestOutput 接入结果，Records 与 Error 互斥
type IngestOutput struct {
	Records []ingestion.CanonicalCase `json:"records"`
	Error   *string                   `json:"error"`
}

// NewIngestOutput 由规范化结果或错误构造接入结果
func NewIngestOutput(result *ingestion.Result, err error) IngestOutput {
	if err != nil {
		msg := err.Error()
		return IngestOutput{Records: []ingestion.CanonicalCase{}, Error: &msg}
	}
	if result == nil {
		return IngestOutput{Records: []ingestion.CanonicalCase{}}
	}
	return IngestOutput{Records: result.Records}
}

// DisparityReport 差异分析报告
type DisparityReport struct {
	DatasetID   string               `json:"dataset_id,omitempty"`
	Filter      disparity.FilterSpec `json:"filter"`
	RecordCount int                  `json:"record_count"`
	Metrics     *disparity.Metrics   `json:"metrics"`
	Findings    []alerting.Finding   `json:"findings"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// ComputeDisparityReport 按种族维度对给定记录计算报告和告警发现
func ComputeDisparityReport(records []ingestion.CanonicalCase, thresholds disparity.Thresholds, opts ...disparity.Option) *DisparityReport {
	return computeReport(records, disparity.DimensionRace, thresholds, opts...)
}

// ComputeReport 对筛选后的记录按指定维度计算报告
func ComputeReport(records []ingestion.CanonicalCase, filter disparity.FilterSpec, dim disparity.Dimension, thresholds disparity.Thresholds, opts ...disparity.Option) *DisparityReport {
	filtered := disparity.ApplyFilter(records, filter)
	report := computeReport(filtered, dim, thresholds, opts...)
	report.Filter = filter
	return report
}

func computeReport(records []ingestion.CanonicalCase, dim disparity.Dimension, thresholds disparity.Thresholds, opts ...disparity.Option) *DisparityReport {
	m := disparity.Compute(records, dim, thresholds, opts...)
	return &DisparityReport{
		RecordCount: len(records),
		Metrics:     m,
		Findings:    alerting.Evaluate(m, thresholds),
		GeneratedAt: time.Now(),
	}
}
