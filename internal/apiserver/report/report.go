package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"campus-access/internal/shared/model"
)

// isoLayout 毫秒精度的 UTC 时间
const isoLayout = "2006-01-02T15:04:05.000Z"

// ApprovedAccessHeaders 已批准访问报表的列
var ApprovedAccessHeaders = []string{
	"request_id",
	"student_name",
	"student_id",
	"building",
	"room",
	"semester",
	"requester",
	"request_date",
	"approver",
	"approval_date",
}

// Report 待导出的表格
type Report struct {
	Filename string
	Headers  []string
	Rows     [][]any
}

// Empty 是否没有数据行
func (r *Report) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// CSV 编码为 CSV 字节
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, r.Headers, r.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ApprovedAccess 生成管理员所辖楼栋内状态为 Approved 的申请报表
//
// 只包含 Approved，不含 "Approved by Chair"。行顺序与输入一致。
func ApprovedAccess(requests []*model.Request, users []*model.User, manager *model.User, now time.Time) *Report {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	rep := &Report{
		Filename: Filename(now),
		Headers:  ApprovedAccessHeaders,
	}
	for _, req := range requests {
		if req.Status != model.StatusApproved || !manager.Manages(req.BuildingID) {
			continue
		}

		var building, room any
		if b, ok := model.BuildingByID(req.BuildingID); ok {
			building = b.Name
		}
		if r, ok := model.RoomByID(req.RoomID); ok {
			room = r.Name
		}

		var approver any
		if req.ActionTakenBy != nil {
			if name, ok := names[*req.ActionTakenBy]; ok {
				approver = name
			}
		}
		approvalDate := ""
		if req.ActionTakenAt != nil {
			approvalDate = req.ActionTakenAt.UTC().Format(isoLayout)
		}

		var requester any
		if name, ok := names[req.RequestedBy]; ok {
			requester = name
		}

		rep.Rows = append(rep.Rows, []any{
			req.ID,
			req.StudentName,
			req.StudentID,
			building,
			room,
			req.Semester,
			requester,
			req.RequestedAt.UTC().Format(isoLayout),
			approver,
			approvalDate,
		})
	}
	return rep
}

// Filename 报表文件名，日期取 UTC
func Filename(now time.Time) string {
	return fmt.Sprintf("approved-access-report-%s.csv", now.UTC().Format("2006-01-02"))
}

// Archiver 报表归档（对象存储）
type Archiver interface {
	PutReport(ctx context.Context, filename string, data []byte) (string, error)
}

// Archive 编码并上传报表，返回对象键
func Archive(ctx context.Context, a Archiver, rep *Report) (string, error) {
	data, err := rep.CSV()
	if err != nil {
		return "", err
	}
	key, err := a.PutReport(ctx, rep.Filename, data)
	if err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}
	return key, nil
}
