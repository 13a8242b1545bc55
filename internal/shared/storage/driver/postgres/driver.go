// Package postgres PostgreSQL 数据库驱动
//
// 提供 PostgreSQL 连接管理和方言实现。
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campus-access/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation PostgreSQL 唯一约束冲突 SQLSTATE
const uniqueViolation = "23505"

// Dialect PostgreSQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverPostgres
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.RebindToPositional(query)
}

func (d *Dialect) CurrentTimestamp() string {
	return "NOW()"
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	return dbutil.UpsertClause(conflictColumn, updateExprs)
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// AutoMigrate 建表（幂等）
func (d *Dialect) AutoMigrate(db *sql.DB) error {
	return dbutil.ExecSchema(db, schema)
}

// Open 创建 PostgreSQL 数据库连接
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// NewDialect 创建 PostgreSQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

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
    approved BOOLEAN NOT NULL DEFAULT FALSE,
    can_request BOOLEAN NOT NULL DEFAULT FALSE,
    manages_building_ids TEXT NOT NULL DEFAULT '[]',
    building VARCHAR(100) NOT NULL DEFAULT '',
    student_id VARCHAR(64) NOT NULL DEFAULT '',
    faculty_id VARCHAR(16) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
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
    requested_at TIMESTAMPTZ NOT NULL,
    action_taken_by VARCHAR(64),
    action_taken_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_access_requests_requested_at ON access_requests(requested_at);
CREATE INDEX IF NOT EXISTS idx_access_requests_building ON access_requests(building_id);
CREATE INDEX IF NOT EXISTS idx_access_requests_requester_email ON access_requests(requester_email);

CREATE TABLE IF NOT EXISTS app_meta (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`
