package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

// ErrConfigNotFound 配置项不存在
var ErrConfigNotFound = errors.New("config key not found")

const keyCurrentTable = "current_table"

// GetConfig 获取配置项
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, key)
		}
		return "", apperr.NewStorageError("get config "+key, err)
	}
	return value, nil
}

// SetConfig 设置配置项
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return apperr.NewStorageError("set config "+key, err)
	}
	return nil
}

// SetCurrentTable 选择当前查看的分表
func (s *Store) SetCurrentTable(ctx context.Context, table string) error {
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table not found: %s", table)
	}
	return s.SetConfig(ctx, keyCurrentTable, table)
}

// CurrentTable 当前查看的表
// 优先使用手动选择的表，其次是最近一次导入的分表，最后回退到 StudentInfo。
func (s *Store) CurrentTable(ctx context.Context) (string, error) {
	selected, err := s.GetConfig(ctx, keyCurrentTable)
	switch {
	case err == nil && selected != "":
		if ok, _ := s.TableExists(ctx, selected); ok {
			return selected, nil
		}
	case err != nil && !errors.Is(err, ErrConfigNotFound):
		return "", err
	}

	latest, err := s.LatestImport(ctx)
	if err != nil {
		return "", err
	}
	if latest != nil && latest.TableName != "" && ValidateTableName(latest.TableName) == nil {
		if ok, _ := s.TableExists(ctx, latest.TableName); ok {
			return latest.TableName, nil
		}
	}
	return model.CanonicalTable, nil
}
