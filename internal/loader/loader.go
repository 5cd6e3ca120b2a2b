package loader

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"gradebook/internal/logger"
	apperr "gradebook/pkg/errors"
)

// DefaultChunkSize 单个事务的默认行数
const DefaultChunkSize = 500

// ConflictPolicy 主键冲突时的处理方式
type ConflictPolicy int

const (
	// ConflictIgnore 已存在的主键保持不变（先写者胜）
	ConflictIgnore ConflictPolicy = iota
	// ConflictReplace 覆盖已存在的行
	ConflictReplace
)

func (p ConflictPolicy) verb() string {
	if p == ConflictReplace {
		return "INSERT OR REPLACE"
	}
	return "INSERT OR IGNORE"
}

// Target 写入目标：表名、列顺序与取值函数
// Values 返回值的顺序必须与 Columns 一致。
type Target[T any] struct {
	Table    string
	Columns  []string
	Conflict ConflictPolicy
	Values   func(T) []any
}

func (t Target[T]) insertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return fmt.Sprintf(`%s INTO "%s" (%s) VALUES (%s)`,
		t.Conflict.verb(), t.Table, strings.Join(t.Columns, ", "), placeholders)
}

// Batch 一个已提交分块中实际插入的记录
type Batch[T any] struct {
	Index    int
	Inserted []T
}

// Options 加载参数
type Options[T any] struct {
	ChunkSize int // 默认 500
	Workers   int // 默认 runtime.NumCPU()

	// Events 每个分块提交后发送一次；由调用方的单个消费者读取，发送会阻塞直到被接收
	Events chan<- Batch[T]
}

// Result 加载结果
type Result[T any] struct {
	Inserted int `json:"inserted"` // 实际插入行数（不含冲突被忽略的行）
	Chunks   int `json:"chunks"`
	Records  []T `json:"-"`        // 实际插入的记录，按分块顺序
}

// Partition 按 size 切分为连续分块，保持原有顺序
func Partition[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Load 分块并行写入
// 每个分块使用独立连接和事务；分块内任一非冲突错误回滚该分块并返回，
// 已提交的分块不回滚。出现错误后不再启动新的分块，返回第一个错误。
func Load[T any](ctx context.Context, db *sql.DB, target Target[T], records []T, opts Options[T]) (*Result[T], error) {
	log := logger.For("loader").With().Str("table", target.Table).Logger()

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	chunks := Partition(records, chunkSize)
	result := &Result[T]{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	// 每个分块只写自己的槽位
	inserted := make([][]T, len(chunks))
	var failed atomic.Bool

	log.Debug().Int("records", len(records)).Int("chunks", len(chunks)).Int("workers", workers).Msg("batch load started")

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if failed.Load() {
				return nil
			}

			rows, err := loadChunk(ctx, db, target, chunk)
			if err != nil {
				failed.Store(true)
				log.Error().Err(err).Int("chunk", i).Msg("chunk rolled back")
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			inserted[i] = rows

			if opts.Events != nil {
				select {
				case opts.Events <- Batch[T]{Index: i, Inserted: rows}:
				case <-ctx.Done():
				}
			}
			return nil
		})
	}

	err := g.Wait()
	for _, rows := range inserted {
		result.Inserted += len(rows)
		result.Records = append(result.Records, rows...)
	}

	if err != nil {
		return result, err
	}
	log.Debug().Int("inserted", result.Inserted).Msg("batch load finished")
	return result, nil
}

// loadChunk 在独立连接上以单个事务写入一个分块，返回实际插入的记录
func loadChunk[T any](ctx context.Context, db *sql.DB, target Target[T], chunk []T) (rows []T, err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, apperr.NewStorageError("acquire connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewStorageError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, target.insertSQL())
	if err != nil {
		return nil, apperr.NewStorageError("prepare insert", err)
	}
	defer stmt.Close()

	for _, rec := range chunk {
		res, err := stmt.ExecContext(ctx, target.Values(rec)...)
		if err != nil {
			return nil, apperr.NewStorageError("insert into "+target.Table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, apperr.NewStorageError("rows affected", err)
		}
		if affected > 0 {
			rows = append(rows, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.NewStorageError("commit transaction", err)
	}
	return rows, nil
}
