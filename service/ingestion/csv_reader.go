/*
 * @module service/ingestion/csv_reader
 * @description 分隔文本读取器，负责编码处理、分隔符识别和表格解析
 * @architecture 工具函数模式
 * @stateFlow 字节流 -> BOM/编码处理 -> 分隔符识别 -> 表头和数据行
 * @rules 空行跳过，列数不一致的行按实际列读取，不在此处丢弃任何数据行
 * @dependencies encoding/csv, golang.org/x/text/encoding/unicode, golang.org/x/text/transform
 * @refs schema_resolver.go
 */

package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// candidateDelimiters 自动识别时支持的分隔符
var candidateDelimiters = []rune{',', ';', '\t'}

// ReadTable 读取分隔文本，delimiter 为 0 时根据表头行自动识别
func ReadTable(r io.Reader, delimiter rune) (*RawTable, error) {
	// 去除 UTF-8/UTF-16 BOM，统一解码为 UTF-8
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("读取输入数据失败: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &EmptyInputError{Reason: "输入内容为空"}
	}

	if delimiter == 0 {
		delimiter = DetectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &EmptyInputError{Reason: "缺少表头行"}
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	table := &RawTable{Headers: headers}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 行失败: %w", len(table.Rows)+2, err)
		}
		if isBlankRow(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// DetectDelimiter 根据首行出现次数最多的候选字符识别分隔符，默认逗号
func DetectDelimiter(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	if !scanner.Scan() {
		return ','
	}
	line := scanner.Text()

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseDelimiter 解析分隔符名称，支持 , ; tab | 及其英文名，空值返回 0 表示自动识别
func ParseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("不支持的分隔符: %q", value)
	}
}
