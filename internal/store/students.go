package store

import (
	"context"
	"fmt"
	"strings"

	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

// ListStudents 读取表中的学生（按插入顺序），limit <= 0 表示不限
// 表中不存在的列（如统一表没有 college）读为空串。
func (s *Store) ListStudents(ctx context.Context, table string, limit, offset int) ([]model.StudentRecord, error) {
	columns, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[strings.ToLower(col)] = true
	}
	selects := make([]string, 0, len(model.StudentColumns))
	for _, col := range model.StudentColumns {
		if present[col] {
			selects = append(selects, fmt.Sprintf("COALESCE(%s, '')", quoteIdent(col)))
		} else {
			selects = append(selects, "''")
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, strings.Join(selects, ", "), quoteIdent(table)), limit, offset)
	if err != nil {
		return nil, apperr.NewStorageError("query students "+table, err)
	}
	defer rows.Close()

	out := []model.StudentRecord{}
	for rows.Next() {
		var r model.StudentRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Class, &r.College, &r.Major, &r.Grade); err != nil {
			return nil, apperr.NewStorageError("scan students "+table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorageError("iterate students "+table, err)
	}
	return out, nil
}

// CountRows 统计表行数
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+quoteIdent(table)).Scan(&count); err != nil {
		return 0, apperr.NewStorageError("count "+table, err)
	}
	return count, nil
}

// ListGrades 读取统一表 StudentInfo
func (s *Store) ListGrades(ctx context.Context, limit, offset int) ([]model.GradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(id, ''), name,
			COALESCE(class, ''), COALESCE(course, ''), COALESCE(score, ''),
			COALESCE(grade, ''), COALESCE(major, ''), COALESCE(teacher_id, '')
		FROM StudentInfo
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, apperr.NewStorageError("query grades", err)
	}
	defer rows.Close()

	out := []model.GradeRecord{}
	for rows.Next() {
		var g model.GradeRecord
		if err := rows.Scan(&g.ID, &g.Name, &g.Class, &g.Course, &g.Score, &g.Grade, &g.Major, &g.TeacherID); err != nil {
			return nil, apperr.NewStorageError("scan grades", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorageError("iterate grades", err)
	}
	return out, nil
}
