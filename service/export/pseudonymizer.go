/*
 * @module service/export/pseudonymizer
 * @description 导出假名化，使用带密钥的 BLAKE2b 对案件编号和参与人编号进行哈希
 * @architecture 纯函数工具
 * @stateFlow 原始编号 -> 带密钥哈希 -> p_ 前缀的十六进制假名
 * @rules 相同密钥下同一编号的假名稳定；空编号保持为空
 * @dependencies golang.org/x/crypto/blake2b
 * @refs csv_export.go
 */

package export

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// pseudonymLength 假名保留的哈希字节数
const pseudonymLength = 12

// Pseudonymizer 带密钥的 BLAKE2b 假名化，同一密钥下同一标识得到同一假名
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer 创建假名化器，密钥长度为 1 到 64 字节
func NewPseudonymizer(key []byte) (*Pseudonymizer, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("假名化密钥长度必须在 1 到 %d 字节之间", blake2b.Size)
	}
	return &Pseudonymizer{key: append([]byte(nil), key...)}, nil
}

// Pseudonymize 返回标识的假名，空值保持为空
func (p *Pseudonymizer) Pseudonymize(id string) string {
	if id == "" {
		return ""
	}
	h, _ := blake2b.New256(p.key)
	h.Write([]byte(id))
	return "p_" + hex.EncodeToString(h.Sum(nil)[:pseudonymLength])
}
