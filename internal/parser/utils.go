package parser

import (
	"path/filepath"
	"strings"

	apperr "gradebook/pkg/errors"
)

// SupportedExtensions 允许导入的扩展名
var SupportedExtensions = []string{".xlsx", ".xls", ".csv"}

// IsSupported 按扩展名判断文件是否可导入
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// CheckExtension 不在白名单内时返回 ErrUnsupportedFileType
func CheckExtension(path string) error {
	if IsSupported(path) {
		return nil
	}
	ext := filepath.Ext(path)
	if ext == "" {
		ext = "(none)"
	}
	return &unsupportedError{ext: ext}
}

type unsupportedError struct {
	ext string
}

func (e *unsupportedError) Error() string {
	return "文件类型不支持，请选择 xlsx/xls/csv: " + e.ext
}

func (e *unsupportedError) Unwrap() error {
	return apperr.ErrUnsupportedFileType
}

// cellAt 取单元格文本并去除首尾空白，越界或未映射列返回空串
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// isBlankRow 整行都为空白
func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
