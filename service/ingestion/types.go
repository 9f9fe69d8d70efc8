/*
 * @module service/ingestion/types
 * @description 数据接入层类型定义，包括原始行、规范化案件记录和加载统计
 * @architecture 数据模型层 - 接入管道的输入输出结构
 * @stateFlow 原始文本 -> RawTable -> RawRow -> CanonicalCase
 * @rules CanonicalCase 创建后不可修改，规范化记录集整体替换
 * @dependencies time
 * @refs schema_resolver.go, record_normalizer.go
 */

package ingestion

import "time"

// 规范字段名
const (
	FieldCaseID            = "case_id"
	FieldParticipantID     = "participant_id"
	FieldReceivedDate      = "received_date"
	FieldOffenseCategory   = "offense_category"
	FieldChargeDisposition = "charge_disposition"
	FieldSentenceType      = "sentence_type"
	FieldCommitmentTerm    = "commitment_term"
	FieldCommitmentUnit    = "commitment_unit"
	FieldAgeAtIncident     = "age_at_incident"
	FieldRace              = "race"
	FieldGender            = "gender"
	FieldIncidentCity      = "incident_city"
	FieldSentencingJudge   = "sentencing_judge"
	FieldCaseDurationDays  = "case_duration_days"
)

// UnknownValue 缺失或无效分类值的统一标签
const UnknownValue = "Unknown"

// RawRow 原始行，键为规范字段名
type RawRow map[string]string

// RawTable 已解析的分隔文本表
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// CanonicalCase 规范化后的案件记录
type CanonicalCase struct {
	CaseID            string    `json:"case_id"`
	ParticipantID     string    `json:"participant_id"`
	ReceivedDate      time.Time `json:"received_date"`
	Race              string    `json:"race"`
	Gender            string    `json:"gender"`
	AgeAtIncident     int       `json:"age_at_incident"`
	OffenseCategory   string    `json:"offense_category"`
	ChargeDisposition string    `json:"charge_disposition"`
	SentenceType      string    `json:"sentence_type"`
	IncidentCity      string    `json:"incident_city"`
	SentencingJudge   string    `json:"sentencing_judge"`
	CommitmentTerm    string    `json:"commitment_term"`
	CommitmentUnit    string    `json:"commitment_unit"`
	CaseDurationDays  int       `json:"case_duration_days"`
	SentenceInYears   *float64  `json:"sentence_in_years,omitempty"` // nil 表示未知，99 表示终身监禁
}

// ReceivedYear 返回受理年份
func (c CanonicalCase) ReceivedYear() int {
	return c.ReceivedDate.Year()
}

// IsLifeSentence 是否为终身监禁
func (c CanonicalCase) IsLifeSentence() bool {
	return c.SentenceInYears != nil && *c.SentenceInYears == LifeSentenceSentinel
}

// Stats 规范化过程统计
type Stats struct {
	RawRows                   int `json:"raw_rows"`
	AcceptedRows              int `json:"accepted_rows"`
	DroppedInvalidDate        int `json:"dropped_invalid_date"`
	DroppedUnknownDemographic int `json:"dropped_unknown_demographic"`
	ImputedAges               int `json:"imputed_ages"`
	ImputedDurations          int `json:"imputed_durations"`
}

// Result 规范化结果
type Result struct {
	Records        []CanonicalCase `json:"records"`
	MedianAge      float64         `json:"median_age"`
	MedianDuration float64         `json:"median_duration"`
	Stats          Stats           `json:"stats"`
	Mapping        HeaderMapping   `json:"mapping"`
}
