/*
 * @module service/export/csv_export
 * @description 扁平表格导出：规范记录集和分组汇总写为分隔文本
 * @architecture 纯函数 - 写入调用方提供的 io.Writer
 * @stateFlow 记录集/分组统计 -> 行 -> 分隔文本
 * @rules
 *   - 含分隔符、引号或换行的字段值加引号转义
 *   - 启用假名化时 case_id、participant_id 使用带密钥的哈希替换
 * @dependencies encoding/csv
 * @refs pseudonymizer.go, service/disparity/types.go
 */

package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/ingestion"
)

// Options 导出选项
type Options struct {
	Delimiter     rune           // 0 表示逗号
	Pseudonymizer *Pseudonymizer // 为空时原样输出标识字段
}

// RecordColumns 记录导出列
var RecordColumns = []string{
	"case_id", "participant_id", "received_date", "race", "gender", "age_at_incident",
	"offense_category", "charge_disposition", "sentence_type", "commitment_term", "commitment_unit",
	"sentence_in_years", "incident_city", "sentencing_judge", "case_duration_days",
}

// GroupColumns 分组汇总导出列
var GroupColumns = []string{
	"group", "count", "share_pct", "outcome_rate_pct", "dismissal_rate_pct",
	"sentenced_count", "life_sentences", "mean_sentence_years", "mean_duration_days",
}

// IntersectionalColumns 交叉统计导出列
var IntersectionalColumns = []string{
	"race", "gender", "age_group", "count", "outcome_rate_pct", "mean_sentence_years", "mean_duration_days",
}

func newWriter(w io.Writer, opts Options) *csv.Writer {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	return cw
}

// WriteRecordsCSV 导出规范记录
func WriteRecordsCSV(w io.Writer, records []ingestion.CanonicalCase, opts Options) error {
	cw := newWriter(w, opts)
	if err := cw.Write(RecordColumns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for _, c := range records {
		caseID, participantID := c.CaseID, c.ParticipantID
		if opts.Pseudonymizer != nil {
			caseID = opts.Pseudonymizer.Pseudonymize(caseID)
			participantID = opts.Pseudonymizer.Pseudonymize(participantID)
		}
		row := []string{
			caseID,
			participantID,
			c.ReceivedDate.Format("2006-01-02"),
			c.Race,
			c.Gender,
			strconv.Itoa(c.AgeAtIncident),
			c.OffenseCategory,
			c.ChargeDisposition,
			c.SentenceType,
			c.CommitmentTerm,
			c.CommitmentUnit,
			formatSentence(c.SentenceInYears),
			c.IncidentCity,
			c.SentencingJudge,
			strconv.Itoa(c.CaseDurationDays),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("写入记录 %s 失败: %w", c.CaseID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteGroupSummaryCSV 导出分组汇总
func WriteGroupSummaryCSV(w io.Writer, groups []disparity.GroupStats, opts Options) error {
	cw := newWriter(w, opts)
	if err := cw.Write(GroupColumns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, g := range groups {
		row := []string{
			g.Group,
			strconv.Itoa(g.Count),
			formatFloat(g.SharePct),
			formatFloat(g.OutcomeRatePct),
			formatFloat(g.DismissalRatePct),
			strconv.Itoa(g.SentencedCount),
			strconv.Itoa(g.LifeSentences),
			formatFloat(g.MeanSentenceYears),
			formatFloat(g.MeanDurationDays),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("写入分组 %s 失败: %w", g.Group, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteIntersectionalCSV 导出交叉统计
func WriteIntersectionalCSV(w io.Writer, rows []disparity.IntersectionalRow, opts Options) error {
	cw := newWriter(w, opts)
	if err := cw.Write(IntersectionalColumns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Race, r.Gender, r.AgeGroup, strconv.Itoa(r.Count),
			formatFloat(r.OutcomeRatePct), formatFloat(r.MeanSentenceYears), formatFloat(r.MeanDurationDays),
		}); err != nil {
			return fmt.Errorf("写入交叉统计行失败: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatSentence(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
