/*
 * @module service/ingestion/sentence_converter
 * @description 刑期换算器，将 (刑期, 单位) 换算为以年为单位的数值
 * @architecture 纯函数
 * @stateFlow 空值判断 -> 终身监禁判断 -> 数值解析 -> 单位换算
 * @rules
 *   - 数值刑期搭配无法识别的单位视为未知而不是零
 *   - 负数刑期视为未知
 * @dependencies strconv, strings
 * @refs record_normalizer.go
 */

package ingestion

import (
	"math"
	"strconv"
	"strings"
)

// LifeSentenceSentinel 终身监禁的哨兵值（年）
const LifeSentenceSentinel = 99.0

// DaysPerYear 日换算为年的除数
const DaysPerYear = 365.25

// ConvertSentence 将刑期换算为年，无法确定时返回 nil
func ConvertSentence(term, unit string) *float64 {
	t := strings.ToLower(strings.TrimSpace(term))
	u := strings.ToLower(strings.TrimSpace(unit))

	if t == "" || u == "" || t == "n/a" || u == "n/a" {
		return nil
	}

	if strings.Contains(t, "life") || strings.Contains(u, "life") {
		years := LifeSentenceSentinel
		return &years
	}

	value, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return nil
	}

	var years float64
	switch {
	case strings.Contains(u, "year"):
		years = value
	case strings.Contains(u, "month"):
		years = value / 12
	case strings.Contains(u, "day"):
		years = value / DaysPerYear
	default:
		return nil
	}
	return &years
}
