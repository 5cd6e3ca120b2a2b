package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTablePrefix 分表前缀
const DefaultTablePrefix = "StudentInfo"

// HashFile 文件内容的 SHA-256（小写十六进制）
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TableNameFor 由文件名和内容哈希生成分表名：StudentInfo_<安全文件名>_<哈希前8位>
func TableNameFor(path, hash string) string {
	return TableNameWithPrefix(DefaultTablePrefix, path, hash)
}

// TableNameWithPrefix 同 TableNameFor，可指定前缀
// 非 ASCII 字母数字的字符一律替换为 '_'；为空或不以字母/下划线开头时补 'f'。
func TableNameWithPrefix(prefix, path, hash string) string {
	if prefix == "" {
		prefix = DefaultTablePrefix
	}

	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range stem {
		if isASCIILetter(r) || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if safe == "" || !(isASCIILetter(rune(safe[0])) || safe[0] == '_') {
		safe = "f" + safe
	}

	if len(hash) > 8 {
		hash = hash[:8]
	}
	return prefix + "_" + safe + "_" + hash
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
