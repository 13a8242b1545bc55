package repository

import (
	"context"
	"database/sql"
)

// GetMeta 读取元数据
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM app_meta WHERE key = $1`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMeta 写入元数据
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	query := `INSERT INTO app_meta (key, value, updated_at) VALUES ($1, $2, ` + s.now() + `) ` +
		s.dialect.UpsertConflict("key", []string{"value = EXCLUDED.value", "updated_at = EXCLUDED.updated_at"})
	_, err := s.db.ExecContext(ctx, s.rebind(query), key, value)
	return err
}

// DeleteMeta 删除元数据
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM app_meta WHERE key = $1`), key)
	return err
}
