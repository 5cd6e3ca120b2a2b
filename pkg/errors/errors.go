package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrInvalidTableName    = errors.New("invalid table name")
	ErrStorageFailure      = errors.New("storage failure")
)

// SchemaMismatchError 表头缺少必要列
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("未找到必要的列：%s", strings.Join(e.Missing, "/"))
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// StorageError 数据库层错误，Op 为出错的操作
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
