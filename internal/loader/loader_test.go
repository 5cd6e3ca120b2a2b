package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"gradebook/internal/model"
	"gradebook/internal/store"
	apperr "gradebook/pkg/errors"
)

func newTestStore(t *testing.T, table string) *store.Store {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "gradebook.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.EnsureStudentTable(context.Background(), table); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return st
}

func studentTarget(table string) Target[model.StudentRecord] {
	return Target[model.StudentRecord]{
		Table:   table,
		Columns: model.StudentColumns,
		Values:  model.StudentRecord.Values,
	}
}

func makeStudents(n int) []model.StudentRecord {
	out := make([]model.StudentRecord, n)
	for i := range out {
		out[i] = model.StudentRecord{
			ID:   fmt.Sprintf("S%05d", i),
			Name: fmt.Sprintf("学生%d", i),
		}
	}
	return out
}

func TestPartition(t *testing.T) {
	t.Parallel()

	records := make([]int, 1192)
	for i := range records {
		records[i] = i
	}

	chunks := Partition(records, 500)
	if len(chunks) != 3 || len(chunks[0]) != 500 || len(chunks[1]) != 500 || len(chunks[2]) != 192 {
		t.Fatalf("unexpected chunk sizes: %d", len(chunks))
	}
	next := 0
	for _, chunk := range chunks {
		for _, v := range chunk {
			if v != next {
				t.Fatalf("order not preserved: got %d want %d", v, next)
			}
			next++
		}
	}

	if got := Partition([]int{}, 500); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
	if got := Partition(records, 0); len(got) != 3 {
		t.Fatalf("zero size should fall back to default, got %d chunks", len(got))
	}
}

func TestLoad_IgnoreOnConflictIsIdempotent(t *testing.T) {
	t.Parallel()

	const table = "StudentInfo_roster_0a1b2c3d"
	st := newTestStore(t, table)
	ctx := context.Background()
	records := makeStudents(1200)

	first, err := Load(ctx, st.DB(), studentTarget(table), records, Options[model.StudentRecord]{ChunkSize: 500, Workers: 4})
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first.Inserted != 1200 || first.Chunks != 3 || len(first.Records) != 1200 {
		t.Fatalf("unexpected first result: inserted=%d chunks=%d", first.Inserted, first.Chunks)
	}

	// 打乱顺序后再次导入，已有学号全部忽略
	reversed := make([]model.StudentRecord, len(records))
	for i := range records {
		reversed[len(records)-1-i] = records[i]
	}
	second, err := Load(ctx, st.DB(), studentTarget(table), reversed, Options[model.StudentRecord]{ChunkSize: 500, Workers: 4})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second.Inserted != 0 || len(second.Records) != 0 {
		t.Fatalf("expected nothing inserted on re-import, got %d", second.Inserted)
	}

	count, err := st.CountRows(ctx, table)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1200 {
		t.Fatalf("unexpected row count: %d", count)
	}

	// 可选字段写入空串而不是 NULL
	var nulls int
	if err := st.QueryRow(`SELECT COUNT(*) FROM "` + table + `" WHERE class IS NULL OR college IS NULL OR major IS NULL OR grade IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 0 {
		t.Fatalf("optional fields stored as NULL: %d rows", nulls)
	}
}

func TestLoad_FirstWriteWins(t *testing.T) {
	t.Parallel()

	const table = "StudentInfo_first_00000000"
	st := newTestStore(t, table)
	ctx := context.Background()

	records := []model.StudentRecord{
		{ID: "01", Name: "原始"},
		{ID: "01", Name: "重复"},
	}
	res, err := Load(ctx, st.DB(), studentTarget(table), records, Options[model.StudentRecord]{ChunkSize: 10, Workers: 1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("unexpected inserted: %d", res.Inserted)
	}

	rows, err := st.ListStudents(ctx, table, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "原始" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestLoad_FailedChunkRollsBackOnlyItself(t *testing.T) {
	t.Parallel()

	const table = "StudentInfo_poison_11111111"
	st := newTestStore(t, table)
	ctx := context.Background()

	// 触发器中的 RAISE(ABORT) 不受 OR IGNORE 影响，用来模拟非冲突错误
	if err := st.Exec(`CREATE TRIGGER reject_poison BEFORE INSERT ON "` + table + `"
		WHEN NEW.id = 'S00004'
		BEGIN SELECT RAISE(ABORT, 'poison row'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	records := makeStudents(9)
	res, err := Load(ctx, st.DB(), studentTarget(table), records, Options[model.StudentRecord]{ChunkSize: 3, Workers: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, apperr.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if res.Inserted != 3 {
		t.Fatalf("unexpected inserted: %d", res.Inserted)
	}

	rows, err := st.ListStudents(ctx, table, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, r := range rows {
		got[r.ID] = true
	}
	for _, id := range []string{"S00000", "S00001", "S00002"} {
		if !got[id] {
			t.Fatalf("committed chunk row %s missing", id)
		}
	}
	for _, id := range []string{"S00003", "S00004", "S00005"} {
		if got[id] {
			t.Fatalf("row %s from failed chunk is visible", id)
		}
	}
	if len(rows) != 3 {
		t.Fatalf("unexpected rows after failure: %d", len(rows))
	}
}

func TestLoad_PublishesCommittedChunks(t *testing.T) {
	t.Parallel()

	const table = "StudentInfo_events_22222222"
	st := newTestStore(t, table)
	ctx := context.Background()

	events := make(chan Batch[model.StudentRecord])
	type summary struct{ rows, batches int }
	received := make(chan summary)
	go func() {
		var sum summary
		for b := range events {
			sum.rows += len(b.Inserted)
			sum.batches++
		}
		received <- sum
	}()

	res, err := Load(ctx, st.DB(), studentTarget(table), makeStudents(25), Options[model.StudentRecord]{
		ChunkSize: 10,
		Workers:   3,
		Events:    events,
	})
	close(events)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got := <-received
	if res.Inserted != 25 || res.Chunks != 3 || got.rows != res.Inserted || got.batches != res.Chunks {
		t.Fatalf("unexpected events summary: %+v (inserted=%d chunks=%d)", got, res.Inserted, res.Chunks)
	}
}

func TestLoad_ReplacePolicy(t *testing.T) {
	t.Parallel()

	st := newTestStore(t, "unused_table")
	ctx := context.Background()

	target := Target[model.GradeRecord]{
		Table:    model.CanonicalTable,
		Columns:  model.CanonicalColumns,
		Conflict: ConflictReplace,
		Values:   model.GradeRecord.Values,
	}
	if _, err := Load(ctx, st.DB(), target, []model.GradeRecord{{ID: "01", Name: "甲", Score: "60"}}, Options[model.GradeRecord]{}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	res, err := Load(ctx, st.DB(), target, []model.GradeRecord{{ID: "01", Name: "甲", Score: "95"}}, Options[model.GradeRecord]{})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("replace should report the written row, got %d", res.Inserted)
	}

	grades, err := st.ListGrades(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list grades: %v", err)
	}
	if len(grades) != 1 || grades[0].Score != "95" {
		t.Fatalf("unexpected grades: %+v", grades)
	}
}

func TestTargetInsertSQL(t *testing.T) {
	t.Parallel()

	got := studentTarget("t1").insertSQL()
	want := `INSERT OR IGNORE INTO "t1" (id, name, class, college, major, grade) VALUES (?, ?, ?, ?, ?, ?)`
	if got != want {
		t.Fatalf("unexpected sql:\n got=%s\nwant=%s", got, want)
	}
}
