package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// 通用 JSON 类型
type JSONB map[string]interface{}

// JSONBStringArray 用于存储字符串数组的 JSONB 类型
type JSONBStringArray []string

// 实现 Scanner 接口
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// 实现 Valuer 接口
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// JSONBStringArray 的 Scanner 接口实现
func (j *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// JSONBStringArray 的 Valuer 接口实现
func (j JSONBStringArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("类型断言失败: 不是 []byte 或 string")
	}
}
