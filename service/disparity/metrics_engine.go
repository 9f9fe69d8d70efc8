/*
 * @module service/disparity/metrics_engine
 * @description 差异指标引擎，按维度分组计算代表性、处置结果、量刑和案件时长差异
 * @architecture 纯函数 - 分组聚合 -> 极值比较 -> 评分
 * @stateFlow 记录集 -> 分组累加器 -> GroupStats -> 四项差异 -> 子评分 -> 综合评分
 * @rules
 *   - 空集合或单一分组视为无差异：比值为 1，极差为 0
 *   - 量刑均值排除终身监禁哨兵值，仅均值为正的分组参与比值计算
 *   - 任何结果都不允许出现 NaN
 * @dependencies sort
 * @refs scoring.go, thresholds.go, ../alerting/threshold_alerting.go
 */

package disparity

import (
	"sort"

	"fairness-audit-service/service/ingestion"
)

type groupAccumulator struct {
	count         int
	outcomes      int
	dismissals    int
	sentenceSum   float64
	sentenced     int
	lifeSentences int
	durationSum   float64
}

// Compute 计算指定维度下的差异指标
func Compute(records []ingestion.CanonicalCase, dim Dimension, t Thresholds, opts ...Option) *Metrics {
	if dim == "" {
		dim = DimensionRace
	}
	groups := BuildGroups(records, dim, opts...)

	m := &Metrics{
		Dimension:    dim,
		TotalRecords: len(records),
		Groups:       groups,
		Thresholds:   t,
	}
	m.Representation = representation(groups, t)
	m.Disposition = spread(groups, func(g GroupStats) float64 { return g.OutcomeRatePct }, t.DispositionSpreadPP)
	m.Sentencing = sentencingRatio(groups, t.SentencingRatio)
	m.Duration = spread(groups, func(g GroupStats) float64 { return g.MeanDurationDays }, t.DurationSpreadDays)
	m.Scores = ComputeScores(m)
	return m
}

// BuildGroups 按维度分组统计，结果按记录数降序、名称升序排列
func BuildGroups(records []ingestion.CanonicalCase, dim Dimension, opts ...Option) []GroupStats {
	o := buildOptions(opts)
	acc := make(map[string]*groupAccumulator)
	for _, c := range records {
		key := dim.GroupKey(c)
		a, ok := acc[key]
		if !ok {
			a = &groupAccumulator{}
			acc[key] = a
		}
		a.add(c, o)
	}

	total := len(records)
	groups := make([]GroupStats, 0, len(acc))
	for key, a := range acc {
		groups = append(groups, a.stats(key, total))
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Group < groups[j].Group
	})
	return groups
}

func (a *groupAccumulator) add(c ingestion.CanonicalCase, o *options) {
	a.count++
	if o.isOutcome(c.ChargeDisposition) {
		a.outcomes++
	}
	if o.isDismissal(c.ChargeDisposition) {
		a.dismissals++
	}
	switch {
	case c.SentenceInYears == nil:
	case c.IsLifeSentence():
		a.lifeSentences++
	default:
		a.sentenceSum += *c.SentenceInYears
		a.sentenced++
	}
	a.durationSum += float64(c.CaseDurationDays)
}

func (a *groupAccumulator) stats(key string, total int) GroupStats {
	g := GroupStats{
		Group:          key,
		Count:          a.count,
		OutcomeCount:   a.outcomes,
		SentencedCount: a.sentenced,
		LifeSentences:  a.lifeSentences,
	}
	g.SharePct = percent(a.count, total)
	g.OutcomeRatePct = percent(a.outcomes, a.count)
	g.DismissalRatePct = percent(a.dismissals, a.count)
	if a.sentenced > 0 {
		g.MeanSentenceYears = a.sentenceSum / float64(a.sentenced)
	}
	if a.count > 0 {
		g.MeanDurationDays = a.durationSum / float64(a.count)
	}
	return g
}

func representation(groups []GroupStats, t Thresholds) RepresentationMeasure {
	var m RepresentationMeasure
	if len(groups) < 2 {
		return m
	}
	for _, g := range groups {
		var distance, bound float64
		switch {
		case g.SharePct < t.RepresentationMinPct:
			distance, bound = t.RepresentationMinPct-g.SharePct, t.RepresentationMinPct
		case g.SharePct > t.RepresentationMaxPct:
			distance, bound = g.SharePct-t.RepresentationMaxPct, t.RepresentationMaxPct
		default:
			continue
		}
		m.OutOfBand = append(m.OutOfBand, g.Group)
		if distance > m.DeviationPP {
			m.DeviationPP, m.Bound = distance, bound
		}
	}
	m.Flagged = len(m.OutOfBand) > 0
	return m
}

func spread(groups []GroupStats, value func(GroupStats) float64, threshold float64) SpreadMeasure {
	var m SpreadMeasure
	maxV, minV, seen := 0.0, 0.0, 0
	for _, g := range groups {
		v := value(g)
		if seen == 0 || v > maxV {
			maxV, m.MaxGroup = v, g.Group
		}
		if seen == 0 || v < minV {
			minV, m.MinGroup = v, g.Group
		}
		seen++
	}
	if seen < 2 {
		return SpreadMeasure{}
	}
	m.Spread = maxV - minV
	m.Flagged = m.Spread > threshold
	return m
}

func sentencingRatio(groups []GroupStats, threshold float64) RatioMeasure {
	m := RatioMeasure{Ratio: 1}
	maxV, minV, seen := 0.0, 0.0, 0
	for _, g := range groups {
		if g.SentencedCount == 0 || g.MeanSentenceYears <= 0 {
			continue
		}
		v := g.MeanSentenceYears
		if seen == 0 || v > maxV {
			maxV, m.MaxGroup = v, g.Group
		}
		if seen == 0 || v < minV {
			minV, m.MinGroup = v, g.Group
		}
		seen++
	}
	if seen < 2 {
		return RatioMeasure{Ratio: 1}
	}
	m.Ratio = maxV / minV
	m.Flagged = m.Ratio > threshold
	return m
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
