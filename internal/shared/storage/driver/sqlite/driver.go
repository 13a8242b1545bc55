// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试、CLI 本地库和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"campus-access/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	return dbutil.UpsertClause(conflictColumn, updateExprs)
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	return dbutil.ExecSchema(db, schema)
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:campus.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// 内存库每个连接都是独立数据库，固定为单连接
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 PostgreSQL 版本字段一致）
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    email_lower VARCHAR(255) UNIQUE,
    username VARCHAR(100) NOT NULL DEFAULT '',
    username_lower VARCHAR(100) UNIQUE,
    password_hash VARCHAR(255) NOT NULL DEFAULT '',
    role VARCHAR(32) NOT NULL,
    approved BOOLEAN NOT NULL DEFAULT 0,
    can_request BOOLEAN NOT NULL DEFAULT 0,
    manages_building_ids TEXT NOT NULL DEFAULT '[]',
    building VARCHAR(100) NOT NULL DEFAULT '',
    student_id VARCHAR(64) NOT NULL DEFAULT '',
    faculty_id VARCHAR(16) NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS access_requests (
    id VARCHAR(64) PRIMARY KEY,
    form VARCHAR(32) NOT NULL,
    title VARCHAR(255) NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '',
    student_id VARCHAR(64) NOT NULL DEFAULT '',
    student_name VARCHAR(200) NOT NULL DEFAULT '',
    building_id INTEGER NOT NULL DEFAULT 0,
    room_id INTEGER NOT NULL DEFAULT 0,
    semester VARCHAR(64) NOT NULL DEFAULT '',
    justification TEXT NOT NULL DEFAULT '',
    priority VARCHAR(32) NOT NULL DEFAULT 'Normal',
    status VARCHAR(32) NOT NULL DEFAULT 'Pending',
    requested_by VARCHAR(64) NOT NULL,
    requester_name VARCHAR(200) NOT NULL DEFAULT '',
    requester_email VARCHAR(255) NOT NULL DEFAULT '',
    requested_at DATETIME NOT NULL,
    action_taken_by VARCHAR(64),
    action_taken_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_access_requests_requested_at ON access_requests(requested_at);
CREATE INDEX IF NOT EXISTS idx_access_requests_building ON access_requests(building_id);
CREATE INDEX IF NOT EXISTS idx_access_requests_requester_email ON access_requests(requester_email);

CREATE TABLE IF NOT EXISTS app_meta (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '',
    updated_at DATETIME DEFAULT (datetime('now'))
);
`
