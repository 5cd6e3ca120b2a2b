package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gradebook/internal/importer"
	"gradebook/internal/model"
	"gradebook/internal/store"
)

type listStudentsResponse struct {
	Table    string                `json:"table"`
	Items    []model.StudentRecord `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// ListStudents 分表中的学生
// GET /api/students?table=&page=&pageSize=
func (h *Handler) ListStudents(c *gin.Context) {
	ctx := c.Request.Context()

	table := strings.TrimSpace(c.Query("table"))
	if table == "" {
		current, err := h.store.CurrentTable(ctx)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		table = current
	}
	if err := store.ValidateTableName(table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exists, err := h.store.TableExists(ctx, table)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	page, pageSize := pagination(c)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "表不存在: " + table})
		return
	}
	// 统一表是成绩表结构，按成绩返回
	if table == model.CanonicalTable {
		h.writeGradesPage(c, page, pageSize)
		return
	}

	total, err := h.store.CountRows(ctx, table)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	items, err := h.store.ListStudents(ctx, table, pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listStudentsResponse{
		Table:    table,
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListGrades 统一表中的成绩
// GET /api/grades?page=&pageSize=
func (h *Handler) ListGrades(c *gin.Context) {
	page, pageSize := pagination(c)
	h.writeGradesPage(c, page, pageSize)
}

func (h *Handler) writeGradesPage(c *gin.Context, page, pageSize int) {
	ctx := c.Request.Context()

	total, err := h.store.CountRows(ctx, model.CanonicalTable)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	items, err := h.store.ListGrades(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"table":    model.CanonicalTable,
		"items":    items,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ListTables 已导入的分表
// GET /api/tables
func (h *Handler) ListTables(c *gin.Context) {
	ctx := c.Request.Context()

	items, err := h.store.ListStudentTables(ctx, importer.DefaultTablePrefix)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	current, err := h.store.CurrentTable(ctx)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"current": current, "items": items})
}

type selectTableRequest struct {
	Table string `json:"table"`
}

// SelectTable 切换当前查看的分表
// POST /api/tables/select
func (h *Handler) SelectTable(c *gin.Context) {
	var req selectTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}
	if err := store.ValidateTableName(req.Table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetCurrentTable(c.Request.Context(), req.Table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": req.Table})
}
