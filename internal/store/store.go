package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"gradebook/internal/logger"
	apperr "gradebook/pkg/errors"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store SQLite 数据库存储层
// 所有操作都从连接池取连接，不持有共享的单连接。
type Store struct {
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// Options 打开数据库的参数
type Options struct {
	MaxOpenConns int    // 连接池上限，默认 CPU 数 + 1
	InitScript   string // 可选的外部初始化脚本（不存在则忽略）
}

// New 创建新的 Store 实例
func New(dbPath string) (*Store, error) {
	return Open(dbPath, Options{})
}

// Open 按参数创建 Store
func Open(dbPath string, opts Options) (*Store, error) {
	// 确保 data 目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// busy_timeout + immediate 事务：并发写入的分块互相等待而不是直接失败
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU() + 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	store := &Store{
		db:   db,
		path: dbPath,
		log:  logger.For("store"),
	}

	ctx := context.Background()
	if opts.InitScript != "" {
		if err := store.RunInitScript(ctx, opts.InitScript); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema 初始化数据库结构并做增量迁移
func (s *Store) initSchema(ctx context.Context) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// 早期版本的 ImportHistory 没有 table_name 列
	added, err := s.ensureColumns(ctx, historyTable, []columnDef{{name: "table_name", ddl: "TEXT"}})
	if err != nil {
		return err
	}
	if len(added) > 0 {
		s.log.Info().Strs("columns", added).Msg("migrated ImportHistory")
	}

	return s.EnsureCanonicalSchema(ctx)
}

// RunInitScript 执行外部初始化脚本，按 ';' 拆分逐条执行
func (s *Store) RunInitScript(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read init script: %w", err)
	}

	count := 0
	for _, stmt := range strings.Split(string(data), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt+";"); err != nil {
			return apperr.NewStorageError("run init script", fmt.Errorf("%s: %w", firstLine(stmt), err))
		}
		count++
	}

	s.log.Info().Str("script", path).Int("statements", count).Msg("init script applied")
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB 获取连接池（批量导入按分块各自取连接）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path 数据库文件路径
func (s *Store) Path() string {
	return s.path
}

// QueryRow 查询单行
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

// Exec 执行 SQL 语句
func (s *Store) Exec(query string, args ...interface{}) error {
	_, err := s.db.Exec(query, args...)
	return err
}
