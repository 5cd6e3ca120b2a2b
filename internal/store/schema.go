package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

const historyTable = "ImportHistory"

var safeTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName 表名只允许字母、数字、下划线且不以数字开头
func ValidateTableName(name string) error {
	if !safeTableName.MatchString(name) {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidTableName, name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

type columnDef struct {
	name string
	ddl  string
}

// canonicalColumns StudentInfo 的标准列；补列时 NOT NULL 列必须带默认值
var canonicalColumns = []columnDef{
	{name: "id", ddl: "TEXT"},
	{name: "name", ddl: "TEXT NOT NULL DEFAULT ''"},
	{name: "class", ddl: "TEXT"},
	{name: "course", ddl: "TEXT"},
	{name: "score", ddl: "TEXT"},
	{name: "grade", ddl: "TEXT"},
	{name: "major", ddl: "TEXT"},
	{name: "teacher_id", ddl: "TEXT"},
}

// EnsureStudentTable 确保分表存在（幂等）
func (s *Store) EnsureStudentTable(ctx context.Context, name string) error {
	if err := ValidateTableName(name); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id      TEXT PRIMARY KEY,
			name    TEXT NOT NULL,
			class   TEXT,
			college TEXT,
			major   TEXT,
			grade   TEXT
		)`, quoteIdent(name)))
	if err != nil {
		return apperr.NewStorageError("create table "+name, err)
	}
	return nil
}

// EnsureCanonicalSchema 确保 StudentInfo 存在且包含全部标准列
// 只做加列，不删除、不重命名已有列。
func (s *Store) EnsureCanonicalSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS StudentInfo (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			class      TEXT,
			course     TEXT,
			score      TEXT,
			grade      TEXT,
			major      TEXT,
			teacher_id TEXT
		)`)
	if err != nil {
		return apperr.NewStorageError("create table "+model.CanonicalTable, err)
	}

	added, err := s.ensureColumns(ctx, model.CanonicalTable, canonicalColumns)
	if err != nil {
		return err
	}
	if len(added) > 0 {
		s.log.Info().Strs("columns", added).Msg("migrated StudentInfo to canonical schema")
	}
	return nil
}

// Columns 读取表的列名（PRAGMA table_info），表不存在时返回空
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, apperr.NewStorageError("table info "+table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, apperr.NewStorageError("scan table info "+table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStorageError("iterate table info "+table, err)
	}
	return columns, nil
}

// ensureColumns 补齐缺失列，返回新增的列名
func (s *Store) ensureColumns(ctx context.Context, table string, defs []columnDef) ([]string, error) {
	existing, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	// SQLite 列名不区分大小写
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[strings.ToLower(name)] = true
	}

	var added []string
	for _, def := range defs {
		if have[strings.ToLower(def.name)] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), def.name, def.ddl)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return added, apperr.NewStorageError("add column "+table+"."+def.name, err)
		}
		added = append(added, def.name)
	}
	return added, nil
}
