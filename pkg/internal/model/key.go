package model

import (
	"encoding/base64"
	"fmt"
)

// EncodeKey 将资产的相对存储路径编码为记录键.
// 采用 URL 安全的 base64（字符集同时满足 NATS KV 键约束），同一键不加改动地作为对象存储的查找键使用.
func EncodeKey(relativePath string) string {
	return base64.URLEncoding.EncodeToString([]byte(relativePath))
}

// DecodeKey 将记录键还原为相对存储路径，是 EncodeKey 的精确逆运算.
// 编解码不对路径分隔符做任何归一化.
func DecodeKey(key string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode asset key %q: %w", key, err)
	}

	return string(raw), nil
}
