/*
 * @module service/export/digest
 * @description 为外部对话助手生成纯文本数据摘要
 * @architecture 纯函数 - 无状态
 * @stateFlow 规范记录集 -> 计数与均值 -> 文本
 * @rules
 *   - 平均刑期只统计已知的非终身刑期
 *   - 分组百分比按人数降序、名称升序排列
 *   - 罪名类别最多列出前 5 个
 * @dependencies strings, sort
 * @refs service/disparity/metrics_engine.go
 */

package export

import (
	"fmt"
	"sort"
	"strings"

	"fairness-audit-service/service/ingestion"
)

// TopOffenseCount 摘要中列出的罪名类别数
const TopOffenseCount = 5

type countEntry struct {
	name  string
	count int
}

// BuildDigest 生成记录集摘要
func BuildDigest(records []ingestion.CanonicalCase) string {
	var sb strings.Builder
	total := len(records)
	fmt.Fprintf(&sb, "Total cases: %d\n", total)
	if total == 0 {
		return sb.String()
	}

	races := make(map[string]int)
	genders := make(map[string]int)
	offenses := make(map[string]int)
	var sentenceSum, durationSum float64
	var sentenced, life int
	for _, c := range records {
		races[c.Race]++
		genders[c.Gender]++
		offenses[c.OffenseCategory]++
		durationSum += float64(c.CaseDurationDays)
		switch {
		case c.IsLifeSentence():
			life++
		case c.SentenceInYears != nil:
			sentenceSum += *c.SentenceInYears
			sentenced++
		}
	}

	writeShares(&sb, "Race", races, total, 0)
	writeShares(&sb, "Gender", genders, total, 0)

	sb.WriteString("Top offense categories:\n")
	for _, e := range sortedCounts(offenses, TopOffenseCount) {
		fmt.Fprintf(&sb, "  - %s: %d\n", e.name, e.count)
	}

	if sentenced > 0 {
		fmt.Fprintf(&sb, "Mean sentence (years, excluding life): %.2f over %d cases\n", sentenceSum/float64(sentenced), sentenced)
	} else {
		sb.WriteString("Mean sentence (years, excluding life): n/a\n")
	}
	fmt.Fprintf(&sb, "Life sentences: %d\n", life)
	fmt.Fprintf(&sb, "Mean case duration (days): %.1f\n", durationSum/float64(total))
	return sb.String()
}

func writeShares(sb *strings.Builder, label string, counts map[string]int, total, limit int) {
	fmt.Fprintf(sb, "%s distribution:\n", label)
	for _, e := range sortedCounts(counts, limit) {
		fmt.Fprintf(sb, "  - %s: %d (%.1f%%)\n", e.name, e.count, 100*float64(e.count)/float64(total))
	}
}

// sortedCounts 按数量降序、名称升序排序，limit<=0 表示不截断
func sortedCounts(counts map[string]int, limit int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, countEntry{name: name, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
