/*
 * @module service/ingestion/errors
 * @description 摄取错误类型：空输入、缺少字段、无有效记录
 * @architecture 错误类型定义
 * @stateFlow 读取/解析失败 -> 类型化错误 -> 调用方分类
 * @rules 三类错误均终止本次加载，不替换已有数据集
 * @dependencies fmt, strings
 * @refs schema_resolver.go, record_normalizer.go
 */

package ingestion

import (
	"fmt"
	"strings"
)

// EmptyInputError 输入没有表头或没有数据行
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	if e.Reason == "" {
		return "输入数据为空"
	}
	return fmt.Sprintf("输入数据为空: %s", e.Reason)
}

// SchemaError 必需字段在两套表头命名下都无法解析
type SchemaError struct {
	Missing []string `json:"missing"`
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("缺少必需字段: %s", strings.Join(e.Missing, ", "))
}

// NoValidRecordsError 规范化后没有任何记录保留
type NoValidRecordsError struct {
	RawRows int
}

func (e *NoValidRecordsError) Error() string {
	return fmt.Sprintf("没有有效记录: %d 行原始数据全部被丢弃", e.RawRows)
}
