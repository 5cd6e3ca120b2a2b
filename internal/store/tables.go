package store

import (
	"context"
	"strings"

	apperr "gradebook/pkg/errors"
)

// TableStat 分表及其行数
type TableStat struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// TableExists 判断表是否存在
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateTableName(name); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, apperr.NewStorageError("lookup table "+name, err)
	}
	return count > 0, nil
}

// ListStudentTables 列出以 prefix_ 开头的导入分表（按表名排序）
func (s *Store) ListStudentTables(ctx context.Context, prefix string) ([]TableStat, error) {
	pattern := escapeLike(prefix+"_") + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name LIKE ? ESCAPE '\'
		ORDER BY name
	`, pattern)
	if err != nil {
		return nil, apperr.NewStorageError("list tables", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, apperr.NewStorageError("scan tables", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorageError("iterate tables", err)
	}

	out := make([]TableStat, 0, len(names))
	for _, name := range names {
		if ValidateTableName(name) != nil {
			continue
		}
		count, err := s.CountRows(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, TableStat{Name: name, Rows: count})
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
