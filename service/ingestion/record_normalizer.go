/*
 * @module service/ingestion/record_normalizer
 * @description 记录规范化器，两遍处理：先统计全量中位数，再逐行转换、填补和过滤
 * @architecture 管道模式 - 统计遍 -> 转换遍
 * @stateFlow 原始表 -> 年龄/时长中位数 -> 日期解析 -> 种族/性别规范化 -> N/A 默认值 -> 过滤 -> 刑期换算
 * @rules
 *   - 日期无法解析的行直接丢弃
 *   - 种族或性别为 Unknown 的行不进入分析集合
 *   - 年龄不在 (0,120) 或时长为负时用中位数填补
 * @dependencies math, sort, strconv, time
 * @refs schema_resolver.go, canonicalizer.go, sentence_converter.go
 */

package ingestion

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// FallbackMedianAge 没有任何有效年龄时使用的中位数
	FallbackMedianAge = 30.0
	// FallbackMedianDuration 没有任何有效案件时长时使用的中位数
	FallbackMedianDuration = 365.0
	// MaxAge 年龄上界（不含）
	MaxAge = 120
)

// dateLayouts 受理日期支持的格式，按顺序尝试
var dateLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// LoadOptions 加载选项
type LoadOptions struct {
	Delimiter rune        // 0 表示自动识别
	Schema    []FieldSpec // 为空时使用 DefaultSchema
}

// Load 从分隔文本加载并规范化记录集
func Load(r io.Reader, opts LoadOptions) (*Result, error) {
	table, err := ReadTable(r, opts.Delimiter)
	if err != nil {
		return nil, err
	}
	return NormalizeTable(table, opts.Schema)
}

// NormalizeTable 解析表头并规范化所有数据行
func NormalizeTable(table *RawTable, schema []FieldSpec) (*Result, error) {
	mapping, err := ResolveSchema(table, schema)
	if err != nil {
		return nil, err
	}

	rows := make([]RawRow, 0, len(table.Rows))
	for _, cells := range table.Rows {
		rows = append(rows, mapping.Row(cells))
	}

	result, err := Normalize(rows)
	if err != nil {
		return nil, err
	}
	result.Mapping = mapping

	slog.Debug("记录规范化完成",
		"raw_rows", result.Stats.RawRows,
		"accepted", result.Stats.AcceptedRows,
		"dropped_date", result.Stats.DroppedInvalidDate,
		"dropped_demographic", result.Stats.DroppedUnknownDemographic)

	return result, nil
}

// Normalize 对已映射的原始行执行两遍规范化
func Normalize(rows []RawRow) (*Result, error) {
	// 第一遍：统计有效年龄和时长
	var ages, durations []float64
	for _, row := range rows {
		if age, ok := parseAge(row[FieldAgeAtIncident]); ok {
			ages = append(ages, float64(age))
		}
		if d, ok := parseDuration(row[FieldCaseDurationDays]); ok {
			durations = append(durations, float64(d))
		}
	}

	medianAge := MedianOr(ages, FallbackMedianAge)
	medianDuration := MedianOr(durations, FallbackMedianDuration)
	imputedAge := int(math.Round(medianAge))
	imputedDuration := int(math.Round(medianDuration))

	result := &Result{
		Records:        make([]CanonicalCase, 0, len(rows)),
		MedianAge:      medianAge,
		MedianDuration: medianDuration,
		Stats:          Stats{RawRows: len(rows)},
	}

	// 第二遍：逐行转换
	for _, row := range rows {
		received, ok := ParseDate(row[FieldReceivedDate])
		if !ok {
			result.Stats.DroppedInvalidDate++
			continue
		}

		race := CanonicalizeRace(row[FieldRace])
		gender := CanonicalizeGender(row[FieldGender])
		if race == UnknownValue || gender == UnknownValue {
			result.Stats.DroppedUnknownDemographic++
			continue
		}

		age, ok := parseAge(row[FieldAgeAtIncident])
		if !ok {
			age = imputedAge
			result.Stats.ImputedAges++
		}
		duration, ok := parseDuration(row[FieldCaseDurationDays])
		if !ok {
			duration = imputedDuration
			result.Stats.ImputedDurations++
		}

		term := naToEmpty(row[FieldCommitmentTerm])
		unit := naToEmpty(row[FieldCommitmentUnit])

		result.Records = append(result.Records, CanonicalCase{
			CaseID:            strings.TrimSpace(row[FieldCaseID]),
			ParticipantID:     strings.TrimSpace(row[FieldParticipantID]),
			ReceivedDate:      received,
			Race:              race,
			Gender:            gender,
			AgeAtIncident:     age,
			OffenseCategory:   CanonicalizeLabel(row[FieldOffenseCategory]),
			ChargeDisposition: CanonicalizeLabel(row[FieldChargeDisposition]),
			SentenceType:      CanonicalizeLabel(row[FieldSentenceType]),
			IncidentCity:      CanonicalizeTitle(row[FieldIncidentCity]),
			SentencingJudge:   CanonicalizeTitle(row[FieldSentencingJudge]),
			CommitmentTerm:    term,
			CommitmentUnit:    unit,
			CaseDurationDays:  duration,
			SentenceInYears:   ConvertSentence(term, unit),
		})
	}

	result.Stats.AcceptedRows = len(result.Records)
	if len(result.Records) == 0 {
		return nil, &NoValidRecordsError{RawRows: len(rows)}
	}
	return result, nil
}

// ParseDate 按支持的格式解析日期
func ParseDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if IsNA(value) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Median 中位数，偶数个时取中间两个值的平均；空集合返回 NaN
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MedianOr 空集合时返回 fallback 的中位数
func MedianOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return Median(values)
}

// parseAge 解析年龄，小数部分截断，仅接受 (0, MaxAge)
func parseAge(raw string) (int, bool) {
	v, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	age := int(v)
	if age <= 0 || age >= MaxAge {
		return 0, false
	}
	return age, true
}

// parseDuration 解析案件时长（天），仅接受非负值
func parseDuration(raw string) (int, bool) {
	v, ok := parseNumber(raw)
	if !ok || v < 0 {
		return 0, false
	}
	return int(v), true
}

func parseNumber(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	if IsNA(value) {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func naToEmpty(raw string) string {
	value := NormalizeCell(raw)
	if IsNA(value) {
		return ""
	}
	return value
}

// String 便于日志输出
func (s Stats) String() string {
	return fmt.Sprintf("raw=%d accepted=%d dropped_date=%d dropped_demographic=%d imputed_age=%d imputed_duration=%d",
		s.RawRows, s.AcceptedRows, s.DroppedInvalidDate, s.DroppedUnknownDemographic, s.ImputedAges, s.ImputedDurations)
}
