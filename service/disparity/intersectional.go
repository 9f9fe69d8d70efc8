/*
 * @module service/disparity/intersectional
 * @description 交叉分组统计，按种族、性别、年龄段组合汇总
 * @architecture 纯函数
 * @stateFlow 记录集 -> 组合分组 -> 计数、定罪率、平均刑期、平均时长
 * @rules 行按种族、性别排序，年龄段按 <25、25-40、>40 的顺序
 * @dependencies sort
 * @refs metrics_engine.go, types.go
 */

package disparity

import (
	"sort"

	"fairness-audit-service/service/ingestion"
)

// IntersectionalRow 种族 × 性别 × 年龄段的交叉统计行
type IntersectionalRow struct {
	Race              string  `json:"race"`
	Gender            string  `json:"gender"`
	AgeGroup          string  `json:"age_group"`
	Count             int     `json:"count"`
	OutcomeRatePct    float64 `json:"outcome_rate_pct"`
	MeanSentenceYears float64 `json:"mean_sentence_years"`
	MeanDurationDays  float64 `json:"mean_duration_days"`
}

type intersectionKey struct {
	race, gender, ageGroup string
}

var ageGroupOrder = map[string]int{AgeGroupUnder25: 0, AgeGroup25To40: 1, AgeGroupOver40: 2}

// ComputeIntersectional 按 (种族, 性别, 年龄段) 三元组聚合，按种族、性别、年龄段排序
func ComputeIntersectional(records []ingestion.CanonicalCase, opts ...Option) []IntersectionalRow {
	o := buildOptions(opts)
	acc := make(map[intersectionKey]*groupAccumulator)
	for _, c := range records {
		key := intersectionKey{race: c.Race, gender: c.Gender, ageGroup: AgeGroup(c.AgeAtIncident)}
		a, ok := acc[key]
		if !ok {
			a = &groupAccumulator{}
			acc[key] = a
		}
		a.add(c, o)
	}

	rows := make([]IntersectionalRow, 0, len(acc))
	for key, a := range acc {
		g := a.stats("", len(records))
		rows = append(rows, IntersectionalRow{
			Race:              key.race,
			Gender:            key.gender,
			AgeGroup:          key.ageGroup,
			Count:             g.Count,
			OutcomeRatePct:    g.OutcomeRatePct,
			MeanSentenceYears: g.MeanSentenceYears,
			MeanDurationDays:  g.MeanDurationDays,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Race != rows[j].Race {
			return rows[i].Race < rows[j].Race
		}
		if rows[i].Gender != rows[j].Gender {
			return rows[i].Gender < rows[j].Gender
		}
		return ageGroupOrder[rows[i].AgeGroup] < ageGroupOrder[rows[j].AgeGroup]
	})
	return rows
}
