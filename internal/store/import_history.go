package store

import (
	"context"
	"database/sql"
	"time"

	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

const historyColumns = `id, file_path, file_name, file_hash, table_name, imported_at, student_count, note`

// RecordImport 追加一条导入历史，返回自增 id
// 空的 hash/表名/备注存为 NULL，以区分"未知"与"空"。
func (s *Store) RecordImport(ctx context.Context, entry model.ImportHistoryEntry) (int64, error) {
	if entry.ImportedAt == "" {
		entry.ImportedAt = time.Now().Format(model.ImportedAtLayout)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ImportHistory (file_path, file_name, file_hash, table_name, imported_at, student_count, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.FilePath, entry.FileName,
		nullIfEmpty(entry.FileHash), nullIfEmpty(entry.TableName),
		entry.ImportedAt, entry.StudentCount,
		nullIfEmpty(entry.Note),
	)
	if err != nil {
		return 0, apperr.NewStorageError("insert import history", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.NewStorageError("get import history id", err)
	}
	return id, nil
}

// LatestImport 最近一次导入；导入时间相同时取 id 最大的一条。无记录返回 nil
func (s *Store) LatestImport(ctx context.Context) (*model.ImportHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM ImportHistory
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`)

	entry, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewStorageError("query latest import", err)
	}
	return entry, nil
}

// ListImports 全部导入历史，按导入时间倒序
func (s *Store) ListImports(ctx context.Context) ([]model.ImportHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM ImportHistory
		ORDER BY imported_at DESC, id DESC
	`)
	if err != nil {
		return nil, apperr.NewStorageError("query import history", err)
	}
	defer rows.Close()

	out := []model.ImportHistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, apperr.NewStorageError("scan import history", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorageError("iterate import history", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*model.ImportHistoryEntry, error) {
	var (
		e                     model.ImportHistoryEntry
		hash, tableName, note sql.NullString
	)
	if err := row.Scan(&e.ID, &e.FilePath, &e.FileName, &hash, &tableName, &e.ImportedAt, &e.StudentCount, &note); err != nil {
		return nil, err
	}
	e.FileHash = hash.String
	e.TableName = tableName.String
	e.Note = note.String
	return &e, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
