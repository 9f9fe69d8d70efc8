/*
 * @module service/disparity/scoring
 * @description 综合公平评分，将四项差异映射为 0-100 子评分
 * @architecture 纯函数
 * @stateFlow 差异度量 -> 子评分 -> 算术平均
 * @rules 偏差为 0 时得 100 分，评分下限为 0
 * @dependencies math
 * @refs metrics_engine.go
 */

package disparity

import "math"

// ComputeScores 将四项差异映射为 0-100 子评分，综合评分为算术平均
func ComputeScores(m *Metrics) Scores {
	s := Scores{
		Representation: clampScore(100 - 2*m.Representation.DeviationPP),
		Disposition:    clampScore(100 - 2*m.Disposition.Spread),
		Sentencing:     clampScore(100 - 50*(m.Sentencing.Ratio-1)),
		Duration:       clampScore(100 - m.Duration.Spread/3),
	}
	s.Composite = (s.Representation + s.Disposition + s.Sentencing + s.Duration) / 4
	return s
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 100
	}
	return math.Max(0, math.Min(100, v))
}
