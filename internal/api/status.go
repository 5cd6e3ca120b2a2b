package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gradebook/internal/model"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized  bool                      `json:"initialized"`  // 是否已有导入记录
	DBPath       string                    `json:"dbPath"`       // 数据库文件
	CurrentTable string                    `json:"currentTable"` // 当前查看的表
	RowCount     int                       `json:"rowCount"`     // 当前表行数
	LastImport   *model.ImportHistoryEntry `json:"lastImport"`   // 最近一次导入
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	latest, err := h.store.LatestImport(ctx)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	table, err := h.store.CurrentTable(ctx)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	count, err := h.store.CountRows(ctx, table)
	if err != nil {
		h.log.Warn().Err(err).Str("table", table).Msg("count rows failed")
		count = 0
	}

	c.JSON(http.StatusOK, StatusResponse{
		Initialized:  latest != nil,
		DBPath:       h.store.Path(),
		CurrentTable: table,
		RowCount:     count,
		LastImport:   latest,
	})
}
