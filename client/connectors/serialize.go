package connectors

import "encoding/json"

// serializeValue 字符串和字节切片原样发送，其余值按 JSON 序列化
func serializeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
