package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gradebook/internal/importer"
	"gradebook/internal/logger"
	"gradebook/internal/store"
	apperr "gradebook/pkg/errors"
)

// Handler API 处理器
type Handler struct {
	store     *store.Store
	importer  *importer.Coordinator
	uploadDir string
	log       zerolog.Logger
}

// NewHandler 创建 API 处理器；上传文件保存在 uploadDir
func NewHandler(st *store.Store, settings importer.Settings, uploadDir string) *Handler {
	return &Handler{
		store:     st,
		importer:  importer.NewCoordinator(st, settings),
		uploadDir: uploadDir,
		log:       logger.For("api"),
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 数据导入
	router.POST("/imports", h.Import)
	router.GET("/imports", h.ListImports)
	router.GET("/imports/latest", h.LatestImport)

	// 分表
	router.GET("/tables", h.ListTables)
	router.POST("/tables/select", h.SelectTable)

	// 数据查询
	router.GET("/students", h.ListStudents)
	router.GET("/grades", h.ListGrades)
}

// errorStatus 导入/查询错误对应的 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnsupportedFileType),
		errors.Is(err, apperr.ErrSchemaMismatch),
		errors.Is(err, apperr.ErrInvalidTableName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseIntWithDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// pagination 解析 page/pageSize，返回 limit/offset
func pagination(c *gin.Context) (page, pageSize int) {
	page = parseIntWithDefault(c.Query("page"), 1)
	pageSize = parseIntWithDefault(c.Query("pageSize"), 200)
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	if pageSize > 2000 {
		pageSize = 2000
	}
	return page, pageSize
}
