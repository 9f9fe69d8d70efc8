/*
 * @module service/disparity/thresholds
 * @description 差异阈值配置值及默认值
 * @architecture 值对象
 * @stateFlow 默认阈值 -> 调用方覆盖 -> 校验
 * @rules 阈值作为显式参数传入指标引擎，引擎内部不保存全局状态
 * @dependencies errors, fmt
 * @refs service/config/threshold_manager.go
 */

package disparity

import (
	"errors"
	"fmt"
)

// Thresholds 告警阈值，由调用方显式传入
type Thresholds struct {
	RepresentationMinPct float64 `json:"representation_min_pct" yaml:"representation_min_pct"`
	RepresentationMaxPct float64 `json:"representation_max_pct" yaml:"representation_max_pct"`
	DispositionSpreadPP  float64 `json:"disposition_spread_pp" yaml:"disposition_spread_pp"`
	SentencingRatio      float64 `json:"sentencing_ratio" yaml:"sentencing_ratio"`
	DurationSpreadDays   float64 `json:"duration_spread_days" yaml:"duration_spread_days"`
}

// DefaultThresholds 默认阈值：代表性 [10%,60%]，处置 15pp，量刑 1.5 倍，时长 60 天
func DefaultThresholds() Thresholds {
	return Thresholds{
		RepresentationMinPct: 10,
		RepresentationMaxPct: 60,
		DispositionSpreadPP:  15,
		SentencingRatio:      1.5,
		DurationSpreadDays:   60,
	}
}

// Validate 校验阈值取值范围
func (t Thresholds) Validate() error {
	var errs []error
	if t.RepresentationMinPct < 0 || t.RepresentationMinPct > 100 {
		errs = append(errs, fmt.Errorf("representation_min_pct 必须在 [0,100] 内: %v", t.RepresentationMinPct))
	}
	if t.RepresentationMaxPct < 0 || t.RepresentationMaxPct > 100 {
		errs = append(errs, fmt.Errorf("representation_max_pct 必须在 [0,100] 内: %v", t.RepresentationMaxPct))
	}
	if t.RepresentationMinPct > t.RepresentationMaxPct {
		errs = append(errs, fmt.Errorf("representation_min_pct 不能大于 representation_max_pct"))
	}
	if t.DispositionSpreadPP < 0 {
		errs = append(errs, fmt.Errorf("disposition_spread_pp 不能为负数"))
	}
	if t.SentencingRatio < 1 {
		errs = append(errs, fmt.Errorf("sentencing_ratio 不能小于 1"))
	}
	if t.DurationSpreadDays < 0 {
		errs = append(errs, fmt.Errorf("duration_spread_days 不能为负数"))
	}
	return errors.Join(errs...)
}
