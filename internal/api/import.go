package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gradebook/internal/importer"
	"gradebook/internal/parser"
)

// Import 导入花名册/成绩表 (SSE 流式响应)
// POST /api/imports
func (h *Handler) Import(c *gin.Context) {
	// 解析 multipart form
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}
	uploadedFile := files[0]

	// 扩展名不合法时不落盘
	if err := parser.CheckExtension(uploadedFile.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := importer.ParseKind(c.PostForm("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 上传副本以 uuid 命名保存，原始文件名用于分表名和历史记录
	// 导入成功后副本保留，ImportHistory.file_path 指向它；失败时删除。
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建上传目录失败"})
		return
	}
	ext := strings.ToLower(filepath.Ext(uploadedFile.Filename))
	savedPath := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(uploadedFile, savedPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.log.Info().Str("file", uploadedFile.Filename).Str("saved", savedPath).Str("kind", string(kind)).Msg("import requested")

	progressChan := h.importer.Import(c.Request.Context(), importer.ImportOptions{
		FilePath:         savedPath,
		OriginalFilename: uploadedFile.Filename,
		Kind:             kind,
		Note:             strings.TrimSpace(c.PostForm("note")),
	})

	// 流式发送进度事件
	failed := false
	for event := range progressChan {
		if event.Type == "error" {
			failed = true
		}
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}

		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}

	if failed {
		if err := os.Remove(savedPath); err != nil {
			h.log.Warn().Err(err).Str("saved", savedPath).Msg("remove failed upload")
		}
	}
}

// ListImports 导入历史，按时间倒序
// GET /api/imports
func (h *Handler) ListImports(c *gin.Context) {
	items, err := h.store.ListImports(c.Request.Context())
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// LatestImport 最近一次导入
// GET /api/imports/latest
func (h *Handler) LatestImport(c *gin.Context) {
	latest, err := h.store.LatestImport(c.Request.Context())
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "暂无导入记录"})
		return
	}
	c.JSON(http.StatusOK, latest)
}
