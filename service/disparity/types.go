/*
 * @module service/disparity/types
 * @description 差异分析维度、分组键和报告结构定义
 * @architecture 数据模型层
 * @stateFlow CanonicalCase -> 分组键 -> GroupStats -> Metrics
 * @rules 报告每次整体重算，不做增量更新
 * @dependencies fairness-audit-service/service/ingestion
 * @refs metrics_engine.go, intersectional.go
 */

package disparity

import (
	"fmt"
	"strings"

	"fairness-audit-service/service/ingestion"
)

// Dimension 分组维度
type Dimension string

const (
	DimensionRace         Dimension = "race"
	DimensionGender       Dimension = "gender"
	DimensionAgeGroup     Dimension = "age_group"
	DimensionIntersection Dimension = "intersection"
)

// 年龄分组
const (
	AgeGroupUnder25 = "<25"
	AgeGroup25To40  = "25-40"
	AgeGroupOver40  = ">40"
)

// AllDimensions 支持的全部维度
var AllDimensions = []Dimension{DimensionRace, DimensionGender, DimensionAgeGroup, DimensionIntersection}

// ParseDimension 解析维度参数，空值默认按种族分组
func ParseDimension(value string) (Dimension, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return DimensionRace, nil
	}
	for _, d := range AllDimensions {
		if string(d) == v {
			return d, nil
		}
	}
	return "", fmt.Errorf("不支持的分组维度: %s", value)
}

// AgeGroup 三段年龄分组：<25、25-40、>40
func AgeGroup(age int) string {
	switch {
	case age < 25:
		return AgeGroupUnder25
	case age <= 40:
		return AgeGroup25To40
	default:
		return AgeGroupOver40
	}
}

// GroupKey 返回记录在指定维度下的分组键
func (d Dimension) GroupKey(c ingestion.CanonicalCase) string {
	switch d {
	case DimensionGender:
		return c.Gender
	case DimensionAgeGroup:
		return AgeGroup(c.AgeAtIncident)
	case DimensionIntersection:
		return c.Race + " / " + c.Gender + " / " + AgeGroup(c.AgeAtIncident)
	default:
		return c.Race
	}
}

// GroupStats 单个分组的统计
type GroupStats struct {
	Group             string  `json:"group"`
	Count             int     `json:"count"`
	SharePct          float64 `json:"share_pct"`
	OutcomeCount      int     `json:"outcome_count"`
	OutcomeRatePct    float64 `json:"outcome_rate_pct"`
	DismissalRatePct  float64 `json:"dismissal_rate_pct"`
	SentencedCount    int     `json:"sentenced_count"` // 有已知非终身刑期的记录数
	LifeSentences     int     `json:"life_sentences"`
	MeanSentenceYears float64 `json:"mean_sentence_years"`
	MeanDurationDays  float64 `json:"mean_duration_days"`
}

// RepresentationMeasure 代表性偏差
type RepresentationMeasure struct {
	DeviationPP float64  `json:"deviation_pp"`
	Bound       float64  `json:"bound"` // 最大偏离所越过的区间边界
	OutOfBand   []string `json:"out_of_band,omitempty"`
	Flagged     bool     `json:"flagged"`
}

// SpreadMeasure 极差类指标，用于处置结果和案件时长
type SpreadMeasure struct {
	Spread   float64 `json:"spread"`
	MaxGroup string  `json:"max_group,omitempty"`
	MinGroup string  `json:"min_group,omitempty"`
	Flagged  bool    `json:"flagged"`
}

// RatioMeasure 比值类指标，用于量刑
type RatioMeasure struct {
	Ratio    float64 `json:"ratio"`
	MaxGroup string  `json:"max_group,omitempty"`
	MinGroup string  `json:"min_group,omitempty"`
	Flagged  bool    `json:"flagged"`
}

// Scores 子评分和综合评分，均在 [0,100]
type Scores struct {
	Representation float64 `json:"representation"`
	Disposition    float64 `json:"disposition"`
	Sentencing     float64 `json:"sentencing"`
	Duration       float64 `json:"duration"`
	Composite      float64 `json:"composite"`
}

// Metrics 单一维度的差异分析结果
type Metrics struct {
	Dimension      Dimension             `json:"dimension"`
	TotalRecords   int                   `json:"total_records"`
	Groups         []GroupStats          `json:"groups"`
	Representation RepresentationMeasure `json:"representation"`
	Disposition    SpreadMeasure         `json:"disposition"`
	Sentencing     RatioMeasure          `json:"sentencing"`
	Duration       SpreadMeasure         `json:"duration"`
	Scores         Scores                `json:"scores"`
	Thresholds     Thresholds            `json:"thresholds"`
}

// Group 按名称查找分组
func (m *Metrics) Group(name string) (GroupStats, bool) {
	for _, g := range m.Groups {
		if g.Group == name {
			return g, true
		}
	}
	return GroupStats{}, false
}
