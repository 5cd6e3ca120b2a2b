package model

// ImportedAtLayout imported_at 列的文本格式
const ImportedAtLayout = "2006-01-02 15:04:05"

// ImportHistoryEntry 导入历史（只追加）
type ImportHistoryEntry struct {
	ID           int64  `json:"id"`
	FilePath     string `json:"filePath"`
	FileName     string `json:"fileName"`
	FileHash     string `json:"fileHash"`
	TableName    string `json:"tableName"`
	ImportedAt   string `json:"importedAt"`
	StudentCount int    `json:"studentCount"` // 实际插入的行数
	Note         string `json:"note"`
}
