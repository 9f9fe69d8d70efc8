/*
 * @module service/ingestion/canonicalizer
 * @description 取值规范化函数，负责种族、性别、城市、法官等字段的标准化和 N/A 处理
 * @architecture 工具函数模式 - 无状态映射
 * @stateFlow 原始值 -> Unicode 规范化 -> 空白折叠 -> 标签映射
 * @rules 种族按有序关键字列表做不区分大小写的子串匹配，未匹配的非空值首字母大写后保留
 * @dependencies golang.org/x/text/unicode/norm, golang.org/x/text/cases, golang.org/x/text/language
 * @refs record_normalizer.go
 */

package ingestion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// RaceGroup 已知种族分组及其匹配关键字
type RaceGroup struct {
	Label    string
	Keywords []string
}

// KnownRaces 有序的已知种族列表，先匹配者优先
// 带有 [Hispanic or Latino] 标注的复合值归入 Hispanic
var KnownRaces = []RaceGroup{
	{Label: "Hispanic", Keywords: []string{"hispanic", "latino", "latina", "latinx"}},
	{Label: "Black", Keywords: []string{"black", "african"}},
	{Label: "White", Keywords: []string{"white", "caucasian"}},
	{Label: "Asian", Keywords: []string{"asian"}},
	{Label: "American Indian", Keywords: []string{"american indian", "native american", "alaska native"}},
	{Label: "Biracial", Keywords: []string{"biracial", "multiracial"}},
}

// NormalizeCell 单元格基础清洗：NFKC 规范化、去除控制字符、折叠空白
func NormalizeCell(value string) string {
	value = norm.NFKC.String(value)
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, value)
	return strings.Join(strings.Fields(value), " ")
}

// IsNA 判断值是否为空或字面量 N/A
func IsNA(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "n/a"
}

// CanonicalizeRace 种族规范化
func CanonicalizeRace(raw string) string {
	value := NormalizeCell(raw)
	if IsNA(value) || strings.EqualFold(value, UnknownValue) {
		return UnknownValue
	}

	lower := strings.ToLower(value)
	for _, group := range KnownRaces {
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				return group.Label
			}
		}
	}
	return CapitalizeFirst(value)
}

// CanonicalizeGender 性别规范化，仅处理 N/A 到 Unknown 的映射
func CanonicalizeGender(raw string) string {
	value := NormalizeCell(raw)
	if IsNA(value) || strings.EqualFold(value, UnknownValue) {
		return UnknownValue
	}
	return CapitalizeFirst(value)
}

// CanonicalizeTitle 城市、法官等名称规范化为首字母大写形式
func CanonicalizeTitle(raw string) string {
	value := NormalizeCell(raw)
	if IsNA(value) {
		return UnknownValue
	}
	// cases.Caser 非并发安全，每次调用单独创建
	return cases.Title(language.English).String(value)
}

// CanonicalizeLabel 普通分类字段，缺失时回退为 Unknown
func CanonicalizeLabel(raw string) string {
	value := NormalizeCell(raw)
	if IsNA(value) {
		return UnknownValue
	}
	return value
}

// CapitalizeFirst 仅将首字母大写，其余字符保持不变
func CapitalizeFirst(value string) string {
	if value == "" {
		return value
	}
	r, size := utf8.DecodeRuneInString(value)
	return string(unicode.ToUpper(r)) + value[size:]
}
