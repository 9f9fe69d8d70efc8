/*
 * @module service/disparity/options
 * @description 指标计算的函数式选项，配置处置结果关键字
 * @architecture 函数式选项
 * @stateFlow 默认关键字 -> 选项覆盖 -> 小写匹配
 * @rules 关键字匹配不区分大小写
 * @dependencies strings
 * @refs metrics_engine.go
 */

package disparity

import "strings"

// Option 指标计算选项。
//
// 默认关键字：处置结果包含 "guilty" 且不包含 "not guilty" 时计为定罪；
// "nolle" 与 "dismiss" 单独统计为撤诉/驳回率，不计入定罪率。
// 若需将 "nolle" 视为结果关键字，使用 WithOutcomeKeywords("guilty", "nolle")
// 并通过 WithDismissalKeywords 调整撤诉关键字。
type Option func(*options)

type options struct {
	outcomeKeywords   []string
	exclusionKeywords []string
	dismissalKeywords []string
}

func defaultOptions() *options {
	return &options{
		outcomeKeywords:   []string{"guilty"},
		exclusionKeywords: []string{"not guilty"},
		dismissalKeywords: []string{"nolle", "dismiss"},
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithOutcomeKeywords 设置判定为定罪结果的处置关键字
func WithOutcomeKeywords(keywords ...string) Option {
	return func(o *options) {
		o.outcomeKeywords = lowerAll(keywords)
	}
}

// WithExclusionKeywords 设置排除关键字，命中时即使包含定罪关键字也不计入
func WithExclusionKeywords(keywords ...string) Option {
	return func(o *options) {
		o.exclusionKeywords = lowerAll(keywords)
	}
}

// WithDismissalKeywords 设置撤诉/驳回关键字
func WithDismissalKeywords(keywords ...string) Option {
	return func(o *options) {
		o.dismissalKeywords = lowerAll(keywords)
	}
}

func (o *options) isOutcome(disposition string) bool {
	d := strings.ToLower(disposition)
	if containsAny(d, o.exclusionKeywords) {
		return false
	}
	return containsAny(d, o.outcomeKeywords)
}

func (o *options) isDismissal(disposition string) bool {
	return containsAny(strings.ToLower(disposition), o.dismissalKeywords)
}

func containsAny(value string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(value, kw) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		result = append(result, strings.ToLower(strings.TrimSpace(v)))
	}
	return result
}
