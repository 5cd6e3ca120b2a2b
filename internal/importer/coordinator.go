package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"gradebook/internal/loader"
	"gradebook/internal/logger"
	"gradebook/internal/model"
	"gradebook/internal/parser"
	"gradebook/internal/store"
)

// Kind 导入类型
type Kind string

const (
	KindRoster Kind = "roster" // 花名册 → 每个文件一张分表
	KindGrades Kind = "grades" // 课程成绩 → 统一表 StudentInfo
)

// ParseKind 解析导入类型，空串视为花名册
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindRoster:
		return KindRoster, nil
	case KindGrades:
		return KindGrades, nil
	}
	return "", fmt.Errorf("unknown import kind: %s", s)
}

const (
	defaultRosterNote = "批量导入"
	defaultGradesNote = "成绩导入"
)

// Settings 导入参数（来自配置）
type Settings struct {
	ChunkSize   int
	Workers     int
	TablePrefix string
	DefaultNote string
}

// Coordinator 导入协调器
type Coordinator struct {
	store    *store.Store
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store, settings Settings) *Coordinator {
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = loader.DefaultChunkSize
	}
	if settings.Workers <= 0 {
		settings.Workers = runtime.NumCPU()
	}
	if settings.TablePrefix == "" {
		settings.TablePrefix = DefaultTablePrefix
	}
	return &Coordinator{
		store:    st,
		settings: settings,
		log:      logger.For("importer"),
		now:      time.Now,
	}
}

// ImportOptions 导入选项
type ImportOptions struct {
	FilePath         string
	OriginalFilename string // 上传场景下的原始文件名，用于分表名和历史记录
	Kind             Kind
	Note             string
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`    // start/info/chunk_done/warning/done/error
	Message   string      `json:"message"` // 事件消息
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChunkProgress chunk_done 事件的数据：该分块实际插入的记录
type ChunkProgress struct {
	Index    int         `json:"index"`
	Inserted int         `json:"inserted"`
	Records  interface{} `json:"records"`
}

// Result 导入结果
type Result struct {
	Kind          Kind          `json:"kind"`
	FilePath      string        `json:"filePath"`
	FileName      string        `json:"fileName"`
	FileHash      string        `json:"fileHash"`
	SheetName     string        `json:"sheetName"`
	TableName     string        `json:"tableName"`
	RowsRead      int           `json:"rowsRead"` // 去重、跳过之后的记录数
	SkippedRows   int           `json:"skippedRows"`
	DuplicateRows int           `json:"duplicateRows"`
	Inserted      int           `json:"inserted"`
	Chunks        int           `json:"chunks"`
	HistoryID     int64         `json:"historyId"` // 历史记录写入失败时为 0
	Duration      time.Duration `json:"duration"`
}

// Import 异步执行导入，返回进度通道；导入结束后通道关闭
// 调用方必须读完通道。
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		_, _ = c.Run(ctx, opts, progressChan)
	}()

	return progressChan
}

// Run 同步执行导入；progress 可为 nil
// 失败时发送一条 error 事件，成功时以 done 事件携带 *Result 结束。
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions, progress chan<- ProgressEvent) (*Result, error) {
	startTime := time.Now()

	res, err := c.doImport(ctx, opts, progress)
	if err != nil {
		c.log.Error().Err(err).Str("file", opts.FilePath).Msg("import failed")
		c.sendProgress(ctx, progress, ProgressEvent{
			Type:    "error",
			Message: err.Error(),
		})
		return nil, err
	}

	res.Duration = time.Since(startTime)
	c.log.Info().
		Str("file", res.FileName).
		Str("table", res.TableName).
		Int("read", res.RowsRead).
		Int("inserted", res.Inserted).
		Dur("duration", res.Duration).
		Msg("import finished")

	c.sendProgress(ctx, progress, ProgressEvent{
		Type:    "done",
		Message: fmt.Sprintf("导入完成：新增 %d 条记录", res.Inserted),
		Data:    res,
	})
	return res, nil
}

func (c *Coordinator) doImport(ctx context.Context, opts ImportOptions, progress chan<- ProgressEvent) (*Result, error) {
	fileName := opts.OriginalFilename
	if fileName == "" {
		fileName = filepath.Base(opts.FilePath)
	}

	// 扩展名不在白名单内时不做任何解析
	if err := parser.CheckExtension(fileName); err != nil {
		return nil, err
	}
	if err := parser.CheckExtension(opts.FilePath); err != nil {
		return nil, err
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindRoster
	}

	c.sendProgress(ctx, progress, ProgressEvent{
		Type:    "start",
		Message: "开始导入文件",
		Data: map[string]string{
			"filename": fileName,
			"kind":     string(kind),
		},
	})

	hash, err := HashFile(opts.FilePath)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Kind:     kind,
		FilePath: opts.FilePath,
		FileName: fileName,
		FileHash: hash,
	}

	note := opts.Note
	switch kind {
	case KindGrades:
		err = c.importGrades(ctx, opts.FilePath, res, progress)
		if note == "" {
			note = defaultGradesNote
		}
	default:
		err = c.importRoster(ctx, opts.FilePath, res, progress)
		if note == "" {
			note = c.settings.DefaultNote
		}
		if note == "" {
			note = defaultRosterNote
		}
	}
	if err != nil {
		return nil, err
	}

	c.recordHistory(ctx, res, note, progress)
	return res, nil
}

// importRoster 花名册：读取 → 分表命名/建表 → 分块写入
func (c *Coordinator) importRoster(ctx context.Context, path string, res *Result, progress chan<- ProgressEvent) error {
	sheet, err := parser.ReadRoster(path)
	if err != nil {
		return err
	}
	res.SheetName = sheet.SheetName
	res.RowsRead = len(sheet.Records)
	res.SkippedRows = sheet.SkippedRows
	res.DuplicateRows = sheet.DuplicateRows

	c.sendProgress(ctx, progress, ProgressEvent{
		Type:    "info",
		Message: fmt.Sprintf("解析完成：%d 条记录（跳过 %d 行，重复 %d 行）", res.RowsRead, res.SkippedRows, res.DuplicateRows),
		Data:    map[string]interface{}{"sheet": sheet.SheetName, "totalRows": sheet.TotalRows},
	})

	res.TableName = TableNameWithPrefix(c.settings.TablePrefix, res.FileName, res.FileHash)
	if err := c.store.EnsureStudentTable(context.WithoutCancel(ctx), res.TableName); err != nil {
		return err
	}

	target := loader.Target[model.StudentRecord]{
		Table:    res.TableName,
		Columns:  model.StudentColumns,
		Conflict: loader.ConflictIgnore,
		Values:   model.StudentRecord.Values,
	}
	loaded, err := loadWithProgress(ctx, c, target, sheet.Records, progress)
	if err != nil {
		return err
	}
	res.Inserted = loaded.Inserted
	res.Chunks = loaded.Chunks
	return nil
}

// importGrades 成绩：读取 → 按学号保留最后一条 → 覆盖写入 StudentInfo
func (c *Coordinator) importGrades(ctx context.Context, path string, res *Result, progress chan<- ProgressEvent) error {
	sheet, err := parser.ReadGrades(path)
	if err != nil {
		return err
	}
	records := parser.LastByID(sheet.Records)
	res.SheetName = sheet.SheetName
	res.RowsRead = len(records)
	res.SkippedRows = sheet.SkippedRows
	res.DuplicateRows = len(sheet.Records) - len(records)

	c.sendProgress(ctx, progress, ProgressEvent{
		Type:    "info",
		Message: fmt.Sprintf("解析完成：%d 条成绩记录", res.RowsRead),
		Data:    map[string]interface{}{"sheet": sheet.SheetName, "totalRows": sheet.TotalRows},
	})

	if err := c.store.EnsureCanonicalSchema(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	res.TableName = model.CanonicalTable

	target := loader.Target[model.GradeRecord]{
		Table:    model.CanonicalTable,
		Columns:  model.CanonicalColumns,
		Conflict: loader.ConflictReplace,
		Values:   model.GradeRecord.Values,
	}
	loaded, err := loadWithProgress(ctx, c, target, records, progress)
	if err != nil {
		return err
	}
	res.Inserted = loaded.Inserted
	res.Chunks = loaded.Chunks
	return nil
}

// loadWithProgress 调用 loader 并把每个已提交分块转成 chunk_done 事件
// 分块事件只由这里的单个 goroutine 消费。ctx 只约束事件发送，
// 调用方取消后写入照常完成，事件被丢弃。
func loadWithProgress[T any](ctx context.Context, c *Coordinator, target loader.Target[T], records []T, progress chan<- ProgressEvent) (*loader.Result[T], error) {
	events := make(chan loader.Batch[T])
	done := make(chan struct{})

	go func() {
		defer close(done)
		for batch := range events {
			c.sendProgress(ctx, progress, ProgressEvent{
				Type:    "chunk_done",
				Message: fmt.Sprintf("分块 %d 写入 %d 行", batch.Index+1, len(batch.Inserted)),
				Data: ChunkProgress{
					Index:    batch.Index,
					Inserted: len(batch.Inserted),
					Records:  batch.Inserted,
				},
			})
		}
	}()

	res, err := loader.Load(context.WithoutCancel(ctx), c.store.DB(), target, records, loader.Options[T]{
		ChunkSize: c.settings.ChunkSize,
		Workers:   c.settings.Workers,
		Events:    events,
	})
	close(events)
	<-done

	return res, err
}

// recordHistory 写入导入历史；失败只记录警告，不影响导入结果
func (c *Coordinator) recordHistory(ctx context.Context, res *Result, note string, progress chan<- ProgressEvent) {
	id, err := c.store.RecordImport(context.WithoutCancel(ctx), model.ImportHistoryEntry{
		FilePath:     res.FilePath,
		FileName:     res.FileName,
		FileHash:     res.FileHash,
		TableName:    res.TableName,
		ImportedAt:   c.now().Format(model.ImportedAtLayout),
		StudentCount: res.Inserted,
		Note:         note,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("table", res.TableName).Msg("failed to record import history")
		c.sendProgress(ctx, progress, ProgressEvent{
			Type:    "warning",
			Message: fmt.Sprintf("导入历史写入失败: %v", err),
		})
		return
	}
	res.HistoryID = id
}

// sendProgress 发送进度事件；progress 为 nil 时忽略
func (c *Coordinator) sendProgress(ctx context.Context, ch chan<- ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}
