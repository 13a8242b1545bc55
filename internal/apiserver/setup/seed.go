// Package setup 首次运行初始化
//
// Seed 在 appInitialized 标记缺失时写入种子账号（可选附带 Web 演示数据），
// 之后的启动直接跳过，不会覆盖已有数据。
package setup

import (
	"context"
	"fmt"
	"time"

	"campus-access/internal/apiserver/auth"
	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// Options 种子选项
type Options struct {
	// DemoData 额外写入 8 个演示用户与 4 条演示申请
	DemoData bool
	// Now 演示申请的相对时间基准；为零时取当前时间
	Now time.Time
}

type seedUser struct {
	user     model.User
	password string
}

// baseUsers 总会写入的两个账号
func baseUsers() []seedUser {
	return []seedUser{
		{model.User{ID: "admin-1", Name: "Admin User", Email: "admin@ncat.edu", Role: model.RoleAdmin,
			Approved: true, CanRequest: true, Building: "Admin Office"}, "admin123"},
		{model.User{ID: "prof-pend-1", Name: "Prof Demo", Email: "prof_demo@ncat.edu", Role: model.RoleProfessor,
			Approved: false, CanRequest: true, Building: "McNair Hall"}, "prof123"},
	}
}

// demoUsers Web 端演示账号，密码统一为 password
func demoUsers() []seedUser {
	users := []model.User{
		{ID: "1", Username: "asmith", Name: "Dr. Alice Smith", Email: "asmith@ncat.edu", Role: model.RoleRequester, CanRequest: true},
		{ID: "2", Username: "bjohnson", Name: "Dr. Bob Johnson", Email: "bjohnson@ncat.edu", Role: model.RoleRequester, CanRequest: true},
		{ID: "3", Username: "cbrown", Name: "Mr. Charlie Brown", Email: "cbrown@ncat.edu", Role: model.RoleApprover, ManagesBuildingIDs: []int{1, 4}},
		{ID: "4", Username: "dprince", Name: "Ms. Diana Prince", Email: "dprince@ncat.edu", Role: model.RoleApprover, ManagesBuildingIDs: []int{2, 3}},
		{ID: "5", Username: "eadams", Name: "Prof. Eve Adams", Email: "eadams@ncat.edu", Role: model.RoleRequester, CanRequest: false},
		{ID: "6", Username: "johndoe", Name: "John Doe", Email: "jdoe@aggies.ncat.edu", Role: model.RoleStudent, StudentID: "123456789"},
		{ID: "7", Username: "janeroe", Name: "Jane Roe", Email: "jroe@aggies.ncat.edu", Role: model.RoleStudent, StudentID: "987654321"},
		{ID: "8", Username: "ppan", Name: "Peter Pan", Email: "ppan@aggies.ncat.edu", Role: model.RoleStudent, StudentID: "112233445"},
	}
	out := make([]seedUser, len(users))
	for i, u := range users {
		u.Approved = true
		out[i] = seedUser{u, "password"}
	}
	return out
}

// demoRequests 演示申请，按时间升序排列（逐条插入头部后最新在前）
func demoRequests(now time.Time) []*model.Request {
	actor := func(id string, at time.Time) (*string, *time.Time) { return &id, &at }

	r3by, r3at := actor("4", time.Date(2024, 4, 15, 14, 30, 0, 0, time.UTC))
	r4by, r4at := actor("4", time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC))

	base := func(id, studentID, studentName string, building, room int, semester, justification, by, byName, byEmail string, at time.Time, status model.Status) *model.Request {
		return &model.Request{
			ID: id, Form: model.FormRoomAccess,
			StudentID: studentID, StudentName: studentName,
			BuildingID: building, RoomID: room, Semester: semester,
			Justification: justification, Priority: model.DefaultPriority, Status: status,
			RequestedBy: by, RequesterName: byName, RequesterEmail: byEmail, RequestedAt: at,
		}
	}

	r3 := base("3", "112233445", "Peter Pan", 2, 201, "Spring 2024", "Completed project work.",
		"1", "Dr. Alice Smith", "asmith@ncat.edu", time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC), model.StatusApproved)
	r3.ActionTakenBy, r3.ActionTakenAt = r3by, r3at

	r4 := base("4", "123456789", "John Doe", 3, 301, "Spring 2024", "Access no longer needed.",
		"2", "Dr. Bob Johnson", "bjohnson@ncat.edu", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), model.StatusRejected)
	r4.ActionTakenBy, r4.ActionTakenAt = r4by, r4at

	r1 := base("1", "123456789", "John Doe", 1, 101, "Fall 2024", "Needs access for senior design project research.",
		"1", "Dr. Alice Smith", "asmith@ncat.edu", now.Add(-48*time.Hour), model.StatusPending)
	r2 := base("2", "987654321", "Jane Roe", 4, 401, "Fall 2024", "Assisting with faculty research on weekends.",
		"2", "Dr. Bob Johnson", "bjohnson@ncat.edu", now.Add(-24*time.Hour), model.StatusPending)

	return []*model.Request{r3, r4, r1, r2}
}

// Seed 首次运行写入种子数据；已初始化时返回 (false, nil)
func Seed(ctx context.Context, store storage.Store, opts Options, log *logging.Logger) (bool, error) {
	if log == nil {
		log = logging.Default("setup")
	}
	v, ok, err := store.GetMeta(ctx, storage.MetaKeyAppInitialized)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", storage.MetaKeyAppInitialized, err)
	}
	if ok && v == "true" {
		log.Debug("Seed skipped, already initialized")
		return false, nil
	}

	users := baseUsers()
	if opts.DemoData {
		users = append(users, demoUsers()...)
	}
	for _, su := range users {
		hash, err := auth.HashPassword(su.password)
		if err != nil {
			return false, fmt.Errorf("hash password for %s: %w", su.user.ID, err)
		}
		u := su.user
		u.PasswordHash = hash
		if err := store.UpsertUser(ctx, &u); err != nil {
			return false, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	requests := 0
	if opts.DemoData {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		for _, r := range demoRequests(now.UTC()) {
			existing, err := store.GetRequest(ctx, r.ID)
			if err != nil {
				return false, fmt.Errorf("check request %s: %w", r.ID, err)
			}
			if existing != nil {
				continue
			}
			if err := store.CreateRequest(ctx, r); err != nil {
				return false, fmt.Errorf("seed request %s: %w", r.ID, err)
			}
			requests++
		}
	}

	if err := store.SetMeta(ctx, storage.MetaKeyAppInitialized, "true"); err != nil {
		return false, fmt.Errorf("write %s: %w", storage.MetaKeyAppInitialized, err)
	}
	log.Info("Seed data written", "users", len(users), "requests", requests, "demo", opts.DemoData)
	return true, nil
}
