/*
 * @module service/ingestion/schema_resolver
 * @description 表头解析器，将两套表头命名方式映射到固定的规范字段集合
 * @architecture 策略模式 - 有序的 (规范字段, [可接受表头...]) 列表
 * @stateFlow 表头读取 -> 逐字段匹配(主名称优先, 备用名称兜底) -> 缺失字段汇总 -> 映射输出
 * @rules 解析要么整体成功，要么在处理任何行之前整体失败
 * @dependencies strings
 * @refs types.go, errors.go
 */

package ingestion

import (
	"strings"
)

// FieldSpec 规范字段定义，Names[0] 为主命名，其余为备用命名
type FieldSpec struct {
	Field    string   `json:"field"`
	Required bool     `json:"required"`
	Names    []string `json:"names"`
}

// DefaultSchema 默认字段表，主命名为县法院公开数据的列名，备用命名为下划线风格列名
var DefaultSchema = []FieldSpec{
	{Field: FieldCaseID, Required: true, Names: []string{"CASE_ID", "case_number"}},
	{Field: FieldParticipantID, Required: false, Names: []string{"CASE_PARTICIPANT_ID", "participant_id"}},
	{Field: FieldReceivedDate, Required: true, Names: []string{"RECEIVED_DATE", "date_received"}},
	{Field: FieldOffenseCategory, Required: false, Names: []string{"OFFENSE_CATEGORY", "offense_type"}},
	{Field: FieldChargeDisposition, Required: true, Names: []string{"CHARGE_DISPOSITION", "disposition"}},
	{Field: FieldSentenceType, Required: true, Names: []string{"SENTENCE_TYPE", "sentence_category"}},
	{Field: FieldCommitmentTerm, Required: true, Names: []string{"COMMITMENT_TERM", "sentence_term"}},
	{Field: FieldCommitmentUnit, Required: true, Names: []string{"COMMITMENT_UNIT", "sentence_unit"}},
	{Field: FieldAgeAtIncident, Required: true, Names: []string{"AGE_AT_INCIDENT", "defendant_age"}},
	{Field: FieldRace, Required: true, Names: []string{"RACE", "defendant_race"}},
	{Field: FieldGender, Required: true, Names: []string{"GENDER", "defendant_gender"}},
	{Field: FieldIncidentCity, Required: false, Names: []string{"INCIDENT_CITY", "city"}},
	{Field: FieldSentencingJudge, Required: false, Names: []string{"SENTENCE_JUDGE", "judge"}},
	{Field: FieldCaseDurationDays, Required: true, Names: []string{"LENGTH_OF_CASE_in_Days", "case_duration_days"}},
}

// HeaderMapping 规范字段到实际列的映射
type HeaderMapping struct {
	Columns map[string]int    `json:"columns"` // 规范字段 -> 列下标
	Headers map[string]string `json:"headers"` // 规范字段 -> 实际表头
}

// Row 按映射将一行单元格转换为 RawRow，未解析的可选字段不出现在结果中
func (m HeaderMapping) Row(cells []string) RawRow {
	row := make(RawRow, len(m.Columns))
	for field, idx := range m.Columns {
		if idx < len(cells) {
			row[field] = cells[idx]
		} else {
			row[field] = ""
		}
	}
	return row
}

// Has 字段是否已解析
func (m HeaderMapping) Has(field string) bool {
	_, ok := m.Columns[field]
	return ok
}

// ResolveSchema 校验表是否为空并解析表头
func ResolveSchema(table *RawTable, schema []FieldSpec) (HeaderMapping, error) {
	if table == nil || len(table.Headers) == 0 {
		return HeaderMapping{}, &EmptyInputError{Reason: "缺少表头行"}
	}
	if len(table.Rows) == 0 {
		return HeaderMapping{}, &EmptyInputError{Reason: "没有数据行"}
	}
	return ResolveHeaders(table.Headers, schema)
}

// ResolveHeaders 将实际表头解析为规范字段映射
// 每个字段按 Names 顺序查找，匹配时忽略首尾空白、BOM 和大小写
func ResolveHeaders(headers []string, schema []FieldSpec) (HeaderMapping, error) {
	if len(schema) == 0 {
		schema = DefaultSchema
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := headerKey(h)
		if key == "" {
			continue
		}
		// 重复表头以第一次出现为准
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	mapping := HeaderMapping{
		Columns: make(map[string]int, len(schema)),
		Headers: make(map[string]string, len(schema)),
	}
	var missing []string

	for _, spec := range schema {
		resolved := false
		for _, name := range spec.Names {
			if idx, ok := index[headerKey(name)]; ok {
				mapping.Columns[spec.Field] = idx
				mapping.Headers[spec.Field] = headers[idx]
				resolved = true
				break
			}
		}
		if !resolved && spec.Required {
			missing = append(missing, spec.Field)
		}
	}

	if len(missing) > 0 {
		return HeaderMapping{}, &SchemaError{Missing: missing}
	}
	return mapping, nil
}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
