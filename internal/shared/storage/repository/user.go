package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
)

const userColumns = `id, name, email, username, password_hash, role, approved, can_request,
	manages_building_ids, building, student_id, faculty_id, created_at, updated_at`

// UpsertUser 插入或更新用户
func (s *Store) UpsertUser(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	managed, err := json.Marshal(nonNilInts(user.ManagesBuildingIDs))
	if err != nil {
		return fmt.Errorf("marshal manages_building_ids: %w", err)
	}

	emailLower, usernameLower := nullString(strings.ToLower(user.Email)), nullString(strings.ToLower(user.Username))
	taken, err := s.identityTaken(ctx, user.ID, emailLower, usernameLower)
	if err != nil {
		return err
	}
	if taken {
		return storage.ErrDuplicate
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `INSERT INTO users (id, name, email, email_lower, username, username_lower, password_hash,
			role, approved, can_request, manages_building_ids, building, student_id, faculty_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) ` +
		s.dialect.UpsertConflict("id", []string{
			"name = EXCLUDED.name",
			"email = EXCLUDED.email",
			"email_lower = EXCLUDED.email_lower",
			"username = EXCLUDED.username",
			"username_lower = EXCLUDED.username_lower",
			"password_hash = EXCLUDED.password_hash",
			"role = EXCLUDED.role",
			"approved = EXCLUDED.approved",
			"can_request = EXCLUDED.can_request",
			"manages_building_ids = EXCLUDED.manages_building_ids",
			"building = EXCLUDED.building",
			"student_id = EXCLUDED.student_id",
			"faculty_id = EXCLUDED.faculty_id",
			"updated_at = EXCLUDED.updated_at",
		})

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		user.ID, user.Name, user.Email, emailLower,
		user.Username, usernameLower, user.PasswordHash,
		string(user.Role), user.Approved, user.CanRequest, string(managed),
		user.Building, user.StudentID, user.FacultyID, user.CreatedAt.UTC(), user.UpdatedAt,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// identityTaken 其他用户的邮箱或用户名是否已占用任一登录标识
//
// 唯一索引只约束单列，这里补上跨列的检查。
func (s *Store) identityTaken(ctx context.Context, id string, emailLower, usernameLower sql.NullString) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM users WHERE id <> $1
		AND (email_lower = $2 OR email_lower = $3 OR username_lower = $4 OR username_lower = $5)`),
		id, emailLower, usernameLower, emailLower, usernameLower).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check user identity: %w", err)
	}
	return n > 0, nil
}

// GetUserByIdentifier 按邮箱或用户名查找用户
func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email_lower = $1 OR username_lower = $2`), id, id)
	return scanUserRow(row)
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return scanUserRow(row)
}

// ListUsers 列出所有用户（按创建时间）
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUserRow(row *sql.Row) (*model.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var role, managed string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &role,
		&u.Approved, &u.CanRequest, &managed, &u.Building, &u.StudentID, &u.FacultyID,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if managed != "" {
		if err := json.Unmarshal([]byte(managed), &u.ManagesBuildingIDs); err != nil {
			return nil, fmt.Errorf("decode manages_building_ids for %s: %w", u.ID, err)
		}
	}
	if len(u.ManagesBuildingIDs) == 0 {
		u.ManagesBuildingIDs = nil
	}
	return u, nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
