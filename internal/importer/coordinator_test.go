package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"gradebook/internal/model"
	"gradebook/internal/store"
	apperr "gradebook/pkg/errors"
)

var rosterHeader = []interface{}{"班级", "学号", "姓名", "学院", "专业", "年级"}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "gradebook.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	c := NewCoordinator(st, Settings{ChunkSize: 500, Workers: 4})
	c.now = func() time.Time { return time.Date(2024, 9, 1, 8, 30, 0, 0, time.Local) }
	return c, st
}

func writeSheet(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &rows[i]); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
}

// rosterRows 1192 条有效记录 + 5 行缺学号 + 3 行完全重复，共 1200 行数据
func rosterRows() [][]interface{} {
	rows := [][]interface{}{rosterHeader}
	for i := 0; i < 1192; i++ {
		rows = append(rows, []interface{}{
			fmt.Sprintf("软工%d班", i%8+1),
			fmt.Sprintf("2024%05d", i),
			fmt.Sprintf("学生%d", i),
			"信息学院",
			"软件工程",
			"2024",
		})
		if i < 5 {
			rows = append(rows, []interface{}{"软工1班", "", fmt.Sprintf("无学号%d", i), "信息学院", "软件工程", "2024"})
		}
	}
	for i := 0; i < 3; i++ {
		rows = append(rows, rows[1+i*10])
	}
	return rows
}

func TestCoordinator_RosterImport(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "roster-2024.xlsx")
	writeSheet(t, path, rosterRows())

	events := make(chan ProgressEvent, 100)
	res, err := c.Run(ctx, ImportOptions{FilePath: path}, events)
	close(events)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.RowsRead != 1192 || res.SkippedRows != 5 || res.DuplicateRows != 3 {
		t.Fatalf("unexpected read counts: read=%d skipped=%d dup=%d", res.RowsRead, res.SkippedRows, res.DuplicateRows)
	}
	if res.Inserted != 1192 || res.Chunks != 3 {
		t.Fatalf("unexpected load result: inserted=%d chunks=%d", res.Inserted, res.Chunks)
	}
	if !regexp.MustCompile(`^StudentInfo_roster_2024_[0-9a-f]{8}$`).MatchString(res.TableName) {
		t.Fatalf("unexpected table name: %s", res.TableName)
	}
	if res.TableName[len(res.TableName)-8:] != res.FileHash[:8] {
		t.Fatalf("table suffix %s does not match hash %s", res.TableName, res.FileHash)
	}

	var types []string
	chunkRows := 0
	for evt := range events {
		types = append(types, evt.Type)
		if evt.Type == "chunk_done" {
			chunkRows += evt.Data.(ChunkProgress).Inserted
		}
	}
	if types[0] != "start" || types[len(types)-1] != "done" {
		t.Fatalf("unexpected event order: %v", types)
	}
	if chunkRows != 1192 {
		t.Fatalf("chunk events reported %d rows, want 1192", chunkRows)
	}

	count, err := st.CountRows(ctx, res.TableName)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1192 {
		t.Fatalf("table has %d rows, want 1192", count)
	}

	history, err := st.ListImports(ctx)
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	h := history[0]
	if h.StudentCount != 1192 || h.TableName != res.TableName || h.FileName != "roster-2024.xlsx" {
		t.Fatalf("unexpected history entry: %+v", h)
	}
	if h.ImportedAt != "2024-09-01 08:30:00" || h.Note != "批量导入" || h.ID != res.HistoryID {
		t.Fatalf("unexpected history entry: %+v", h)
	}
}

func TestCoordinator_CancelledCallerStillCompletesLoad(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	c.settings.ChunkSize = 10
	c.settings.Workers = 1

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	writeSheet(t, path, rosterRows())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 收到第一个分块事件后断开，通道仍需读完
	for evt := range c.Import(ctx, ImportOptions{FilePath: path}) {
		if evt.Type == "chunk_done" {
			cancel()
		}
		if evt.Type == "error" {
			t.Fatalf("unexpected error event: %s", evt.Message)
		}
	}

	history, err := st.ListImports(context.Background())
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(history) != 1 || history[0].StudentCount != 1192 {
		t.Fatalf("expected one complete history row, got %+v", history)
	}
	count, err := st.CountRows(context.Background(), history[0].TableName)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1192 {
		t.Fatalf("table has %d rows, want 1192", count)
	}
}

func TestCoordinator_ReimportInsertsNothing(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	writeSheet(t, path, rosterRows())

	first, err := c.Run(ctx, ImportOptions{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	second, err := c.Run(ctx, ImportOptions{FilePath: path, Note: "重复导入"}, nil)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	if second.TableName != first.TableName {
		t.Fatalf("same content should map to the same table: %s vs %s", first.TableName, second.TableName)
	}
	if second.Inserted != 0 {
		t.Fatalf("re-import inserted %d rows, want 0", second.Inserted)
	}

	latest, err := st.LatestImport(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != second.HistoryID || latest.StudentCount != 0 || latest.Note != "重复导入" {
		t.Fatalf("unexpected latest entry: %+v", latest)
	}

	count, _ := st.CountRows(ctx, first.TableName)
	if count != 1192 {
		t.Fatalf("table has %d rows after re-import, want 1192", count)
	}
}

func TestCoordinator_UnsupportedFileType(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	// 文件不存在也应先因扩展名被拒绝
	ch := c.Import(ctx, ImportOptions{FilePath: filepath.Join(t.TempDir(), "notes.txt")})

	var last ProgressEvent
	n := 0
	for evt := range ch {
		last = evt
		n++
	}
	if n != 1 || last.Type != "error" {
		t.Fatalf("expected a single error event, got %d events, last=%+v", n, last)
	}

	_, err := c.Run(ctx, ImportOptions{FilePath: "roster.xlsx", OriginalFilename: "roster.doc"}, nil)
	if !errors.Is(err, apperr.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}

	history, _ := st.ListImports(ctx)
	if len(history) != 0 {
		t.Fatalf("no history expected, got %d", len(history))
	}
}

func TestCoordinator_SchemaMismatchCreatesNothing(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bad.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"班级", "学号", "姓名", "专业"},
		{"软工1班", "2024001", "张三", "软件工程"},
	})

	_, err := c.Run(ctx, ImportOptions{FilePath: path}, nil)
	var mismatch *apperr.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if len(mismatch.Missing) != 2 || mismatch.Missing[0] != "学院" || mismatch.Missing[1] != "年级" {
		t.Fatalf("unexpected missing headers: %v", mismatch.Missing)
	}

	tables, err := st.ListStudentTables(ctx, DefaultTablePrefix)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("no table should be created, got %v", tables)
	}
	history, _ := st.ListImports(ctx)
	if len(history) != 0 {
		t.Fatalf("no history expected, got %d", len(history))
	}
}

func TestCoordinator_OriginalFilenameNamesTable(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "3f1c9a.xlsx")
	writeSheet(t, path, [][]interface{}{
		rosterHeader,
		{"软工1班", "2024001", "张三", "信息学院", "软件工程", "2024"},
	})

	res, err := c.Run(ctx, ImportOptions{FilePath: path, OriginalFilename: "class_a.xlsx"}, nil)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.TableName != "StudentInfo_class_a_"+res.FileHash[:8] {
		t.Fatalf("unexpected table name: %s", res.TableName)
	}

	latest, _ := st.LatestImport(ctx)
	if latest.FileName != "class_a.xlsx" || latest.FilePath != path {
		t.Fatalf("unexpected history entry: %+v", latest)
	}
}

func TestCoordinator_HistoryFailureIsWarning(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	if err := st.Exec("DROP TABLE ImportHistory"); err != nil {
		t.Fatalf("drop history: %v", err)
	}

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	writeSheet(t, path, [][]interface{}{
		rosterHeader,
		{"软工1班", "2024001", "张三", "信息学院", "软件工程", "2024"},
	})

	events := make(chan ProgressEvent, 100)
	res, err := c.Run(ctx, ImportOptions{FilePath: path}, events)
	close(events)
	if err != nil {
		t.Fatalf("history failure must not fail the import: %v", err)
	}
	if res.Inserted != 1 || res.HistoryID != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	warned := false
	for evt := range events {
		if evt.Type == "warning" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning event")
	}
}

func TestCoordinator_GradesImport(t *testing.T) {
	t.Parallel()

	c, st := newTestCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "scores.xlsx")
	writeSheet(t, path, [][]interface{}{
		{"学号", "姓名", "课程名称", "成绩"},
		{"2024001", "张三", "高等数学", 80},
		{"2024002", "李四", "高等数学", 75},
		{"2024001", "张三", "高等数学", 92},
		{"", "", "", ""},
	})

	res, err := c.Run(ctx, ImportOptions{FilePath: path, Kind: KindGrades}, nil)
	if err != nil {
		t.Fatalf("import grades: %v", err)
	}
	if res.TableName != model.CanonicalTable || res.RowsRead != 2 || res.DuplicateRows != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	grades, err := st.ListGrades(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list grades: %v", err)
	}
	if len(grades) != 2 {
		t.Fatalf("expected 2 grade rows, got %d", len(grades))
	}
	for _, g := range grades {
		if g.ID == "2024001" && g.Score != "92" {
			t.Fatalf("last occurrence should win, got score %q", g.Score)
		}
	}

	latest, _ := st.LatestImport(ctx)
	if latest == nil || latest.TableName != model.CanonicalTable || latest.Note != "成绩导入" {
		t.Fatalf("unexpected history entry: %+v", latest)
	}

	// 再次导入覆盖而不是忽略
	res, err = c.Run(ctx, ImportOptions{FilePath: path, Kind: KindGrades}, nil)
	if err != nil {
		t.Fatalf("re-import grades: %v", err)
	}
	if res.Inserted != 2 {
		t.Fatalf("replace policy should report 2 rows, got %d", res.Inserted)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"": KindRoster, "roster": KindRoster, "grades": KindGrades} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("teachers"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
