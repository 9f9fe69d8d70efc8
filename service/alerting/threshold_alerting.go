/*
 * @module service/alerting/threshold_alerting
 * @description 阈值告警，将差异指标与阈值比较并生成有序的告警发现
 * @architecture 纯函数 - 无状态映射
 * @stateFlow Metrics + Thresholds -> 逐项规则判断 -> []Finding
 * @rules
 *   - 顺序固定：代表性、处置结果、量刑、案件时长
 *   - 每条被突破的规则恰好产生一条发现，未突破时返回空列表
 *   - 发现 ID 由规则、维度和涉及分组确定，同样的输入得到同样的 ID
 * @dependencies github.com/google/uuid
 * @refs ../disparity/metrics_engine.go, alert_manager.go
 */

package alerting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"fairness-audit-service/service/disparity"
)

// Rule 告警规则
type Rule string

const (
	RuleRepresentation Rule = "representation"
	RuleDisposition    Rule = "disposition"
	RuleSentencing     Rule = "sentencing"
	RuleDuration       Rule = "duration"
)

// Severity 严重程度
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RepresentationCriticalPP 代表性偏离达到该值（百分点）时升级为严重
const RepresentationCriticalPP = 10.0

var findingNamespace = uuid.MustParse("6f1c9a52-3d0e-4b8a-9c71-2f4e8d5b0a13")

// Finding 告警发现
type Finding struct {
	ID        string              `json:"id"`
	Rule      Rule                `json:"rule"`
	Dimension disparity.Dimension `json:"dimension"`
	Severity  Severity            `json:"severity"`
	Message   string              `json:"message"`
	Value     float64             `json:"value"`
	Threshold float64             `json:"threshold"`
	Groups    []string            `json:"groups"`
}

// Fingerprint 用于去重的稳定标识
func (f Finding) Fingerprint() string {
	groups := append([]string(nil), f.Groups...)
	sort.Strings(groups)
	return fmt.Sprintf("%s|%s|%s", f.Rule, f.Dimension, strings.Join(groups, ","))
}

// Evaluate 按固定顺序检查四项规则
func Evaluate(m *disparity.Metrics, t disparity.Thresholds) []Finding {
	findings := make([]Finding, 0, 4)
	if m == nil {
		return findings
	}

	if m.Representation.Flagged {
		findings = append(findings, newFinding(m.Dimension, RuleRepresentation,
			representationSeverity(m.Representation.DeviationPP),
			fmt.Sprintf("分组 %s 的占比超出 [%.0f%%, %.0f%%] 区间，最大偏离 %.1f 个百分点",
				strings.Join(m.Representation.OutOfBand, "、"), t.RepresentationMinPct, t.RepresentationMaxPct, m.Representation.DeviationPP),
			m.Representation.DeviationPP, m.Representation.Bound, m.Representation.OutOfBand))
	}

	if m.Disposition.Flagged {
		findings = append(findings, newFinding(m.Dimension, RuleDisposition,
			spreadSeverity(m.Disposition.Spread, t.DispositionSpreadPP),
			fmt.Sprintf("定罪率差距 %.1f 个百分点（%s 最高，%s 最低），超过阈值 %.1f",
				m.Disposition.Spread, m.Disposition.MaxGroup, m.Disposition.MinGroup, t.DispositionSpreadPP),
			m.Disposition.Spread, t.DispositionSpreadPP, []string{m.Disposition.MaxGroup, m.Disposition.MinGroup}))
	}

	if m.Sentencing.Flagged {
		findings = append(findings, newFinding(m.Dimension, RuleSentencing,
			ratioSeverity(m.Sentencing.Ratio, t.SentencingRatio),
			fmt.Sprintf("平均刑期比值 %.2f 倍（%s 最高，%s 最低），超过阈值 %.2f 倍",
				m.Sentencing.Ratio, m.Sentencing.MaxGroup, m.Sentencing.MinGroup, t.SentencingRatio),
			m.Sentencing.Ratio, t.SentencingRatio, []string{m.Sentencing.MaxGroup, m.Sentencing.MinGroup}))
	}

	if m.Duration.Flagged {
		findings = append(findings, newFinding(m.Dimension, RuleDuration,
			spreadSeverity(m.Duration.Spread, t.DurationSpreadDays),
			fmt.Sprintf("平均案件时长差距 %.0f 天（%s 最长，%s 最短），超过阈值 %.0f 天",
				m.Duration.Spread, m.Duration.MaxGroup, m.Duration.MinGroup, t.DurationSpreadDays),
			m.Duration.Spread, t.DurationSpreadDays, []string{m.Duration.MaxGroup, m.Duration.MinGroup}))
	}

	return findings
}

func newFinding(dim disparity.Dimension, rule Rule, severity Severity, message string, value, threshold float64, groups []string) Finding {
	f := Finding{
		Rule:      rule,
		Dimension: dim,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Groups:    append([]string(nil), groups...),
	}
	f.ID = uuid.NewSHA1(findingNamespace, []byte(f.Fingerprint())).String()
	return f
}

// spreadSeverity 极差达到阈值两倍时为严重
func spreadSeverity(value, threshold float64) Severity {
	if value >= 2*threshold {
		return SeverityCritical
	}
	return SeverityWarning
}

// ratioSeverity 比值超出部分达到阈值超出部分的两倍时为严重
func ratioSeverity(ratio, threshold float64) Severity {
	if ratio-1 >= 2*(threshold-1) {
		return SeverityCritical
	}
	return SeverityWarning
}

func representationSeverity(deviation float64) Severity {
	if deviation >= RepresentationCriticalPP {
		return SeverityCritical
	}
	return SeverityWarning
}
