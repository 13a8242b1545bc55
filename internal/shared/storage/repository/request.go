package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
)

const requestColumns = `id, form, title, details, student_id, student_name, building_id, room_id,
	semester, justification, priority, status, requested_by, requester_name, requester_email,
	requested_at, action_taken_by, action_taken_at`

// CreateRequest 创建申请
func (s *Store) CreateRequest(ctx context.Context, req *model.Request) error {
	var takenAt sql.NullTime
	if req.ActionTakenAt != nil {
		takenAt = sql.NullTime{Time: req.ActionTakenAt.UTC(), Valid: true}
	}
	var takenBy sql.NullString
	if req.ActionTakenBy != nil {
		takenBy = sql.NullString{String: *req.ActionTakenBy, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO access_requests (`+requestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`),
		req.ID, string(req.Form), req.Title, req.Details, req.StudentID, req.StudentName,
		req.BuildingID, req.RoomID, req.Semester, req.Justification, req.Priority,
		string(req.Status), req.RequestedBy, req.RequesterName, req.RequesterEmail,
		req.RequestedAt.UTC(), takenBy, takenAt,
	)
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// GetRequest 获取申请
func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+requestColumns+` FROM access_requests WHERE id = $1`), id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return req, err
}

// ListRequests 列出全部申请（最新优先）
func (s *Store) ListRequests(ctx context.Context) ([]*model.Request, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM access_requests ORDER BY requested_at DESC, id DESC`)
}

// ListRequestsByRequesterEmail 按申请人邮箱查找
func (s *Store) ListRequestsByRequesterEmail(ctx context.Context, email string) ([]*model.Request, error) {
	return s.queryRequests(ctx, s.rebind(
		`SELECT `+requestColumns+` FROM access_requests WHERE LOWER(requester_email) = $1
		 ORDER BY requested_at DESC, id DESC`), strings.ToLower(strings.TrimSpace(email)))
}

// UpdateRequestStatus 更新申请状态
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status model.Status, actorID string, at time.Time) error {
	var res sql.Result
	var err error
	if actorID == "" {
		res, err = s.db.ExecContext(ctx, s.rebind(
			`UPDATE access_requests SET status = $1 WHERE id = $2`), string(status), id)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(
			`UPDATE access_requests SET status = $1, action_taken_by = $2, action_taken_at = $3 WHERE id = $4`),
			string(status), actorID, at.UTC(), id)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*model.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []*model.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func scanRequest(row rowScanner) (*model.Request, error) {
	r := &model.Request{}
	var form, status string
	var takenBy sql.NullString
	var takenAt sql.NullTime
	if err := row.Scan(&r.ID, &form, &r.Title, &r.Details, &r.StudentID, &r.StudentName,
		&r.BuildingID, &r.RoomID, &r.Semester, &r.Justification, &r.Priority, &status,
		&r.RequestedBy, &r.RequesterName, &r.RequesterEmail, &r.RequestedAt, &takenBy, &takenAt); err != nil {
		return nil, err
	}
	r.Form = model.RequestForm(form)
	st, err := model.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	r.Status = st
	if takenBy.Valid {
		v := takenBy.String
		r.ActionTakenBy = &v
	}
	if takenAt.Valid {
		v := takenAt.Time
		r.ActionTakenAt = &v
	}
	return r, nil
}
