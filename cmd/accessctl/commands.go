package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"campus-access/internal/apiserver/app"
	"campus-access/internal/apiserver/auth"
	"campus-access/internal/apiserver/report"
	"campus-access/internal/apiserver/suggest"
	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
)

// errNotLoggedIn 需要会话的命令在未登录时返回
var errNotLoggedIn = errors.New("not logged in (run: accessctl login <email|username> --password ...)")

type cli struct {
	app      *app.App
	sessions *auth.SessionStore
	sess     *auth.Session
	out      io.Writer
	errOut   io.Writer
	now      func() time.Time
}

func newCLI(ctx context.Context, a *app.App, out, errOut io.Writer) (*cli, error) {
	store := a.Infra.Store
	sessions := auth.NewSessionStore(store, store)
	sess, err := sessions.Restore(ctx)
	if err != nil {
		return nil, err
	}
	return &cli{app: a, sessions: sessions, sess: sess, out: out, errOut: errOut, now: time.Now}, nil
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		return c.signup(ctx, rest)
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "profile":
		return c.profile(ctx, rest)
	case "request", "requests":
		return c.request(ctx, rest)
	case "users":
		return c.users(ctx, rest)
	case "kpis":
		return c.kpis(ctx)
	case "report":
		return c.report(ctx, rest)
	case "suggest":
		return c.suggest(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) user() (*model.User, error) {
	u := c.sess.User()
	if u == nil {
		return nil, errNotLoggedIn
	}
	return u, nil
}

// ============================================================================
// 账号
// ============================================================================

func (c *cli) signup(ctx context.Context, args []string) error {
	var in auth.SignupInput
	fs := c.flags("signup")
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "university email")
	fs.StringVarP(&in.Password, "password", "p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.app.Authenticator.Signup(ctx, in)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("an account with that email already exists")
		}
		return err
	}
	c.sess.Begin(u)
	if err := c.sessions.Save(ctx, c.sess); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account created for %s. An administrator must approve it before requests are decided.\n", u.Email)
	fmt.Fprintln(c.out, "Next: accessctl profile --building <name> --role professor|researcher")
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	var password string
	fs := c.flags("login")
	fs.StringVarP(&password, "password", "p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: accessctl login <email|username> --password P")
	}

	u, err := c.app.Authenticator.Login(ctx, fs.Arg(0), password)
	if err != nil {
		return err
	}
	c.sess.Begin(u)
	if err := c.sessions.Save(ctx, c.sess); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s (%s)\n", u.Name, u.Role)
	if !u.Approved {
		fmt.Fprintln(c.out, "Your account is pending administrator approval.")
	}
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.sessions.Clear(ctx, c.sess); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) whoami() error {
	u, err := c.user()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", u.ID)
	fmt.Fprintf(tw, "Name\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	fmt.Fprintf(tw, "Role\t%s\n", u.Role)
	fmt.Fprintf(tw, "Approved\t%t\n", u.Approved)
	if u.Building != "" {
		fmt.Fprintf(tw, "Building\t%s\n", u.Building)
	}
	if u.FacultyID != "" {
		fmt.Fprintf(tw, "Faculty ID\t%s\n", u.FacultyID)
	}
	if u.StudentID != "" {
		fmt.Fprintf(tw, "Student ID\t%s\n", u.StudentID)
	}
	if len(u.ManagesBuildingIDs) > 0 {
		fmt.Fprintf(tw, "Manages\t%s\n", buildingList(u.ManagesBuildingIDs))
	}
	return tw.Flush()
}

func (c *cli) profile(ctx context.Context, args []string) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	var in auth.ProfileInput
	fs := c.flags("profile")
	fs.StringVar(&in.Building, "building", "", "building name")
	fs.StringVar(&in.Role, "role", "", "professor or researcher")
	fs.StringVar(&in.Office, "office", "", "three digit office number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	updated, err := c.app.Authenticator.CompleteProfile(ctx, u.ID, in)
	if err != nil {
		return err
	}
	c.sess.Begin(updated)
	if err := c.sessions.Save(ctx, c.sess); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Profile saved: %s, %s\n", updated.Building, updated.Role)
	if updated.FacultyID != "" {
		fmt.Fprintf(c.out, "Faculty ID: %s\n", updated.FacultyID)
	}
	return nil
}

// ============================================================================
// 申请
// ============================================================================

func (c *cli) request(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: accessctl request new|list|show|status")
	}
	u, err := c.user()
	if err != nil {
		return err
	}
	switch args[0] {
	case "new":
		return c.requestNew(ctx, u, args[1:])
	case "list":
		return c.requestList(ctx, u, args[1:])
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: accessctl request show <id>")
		}
		req, err := c.app.Lifecycle.GetRequest(ctx, u, args[1])
		if err != nil {
			return err
		}
		return c.printRequest(req)
	case "status":
		if len(args) < 3 {
			return fmt.Errorf("usage: accessctl request status <id> <status>")
		}
		status, err := model.ParseStatus(strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		req, err := c.app.Lifecycle.SetStatus(ctx, u, args[1], status)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s is now %s\n", req.ID, req.Status)
		return nil
	default:
		return fmt.Errorf("unknown request command %q", args[0])
	}
}

func (c *cli) requestNew(ctx context.Context, u *model.User, args []string) error {
	var in model.RequestInput
	var wait bool
	fs := c.flags("request new")
	fs.StringVar(&in.Title, "title", "", "short title")
	fs.StringVar(&in.Details, "details", "", "details")
	fs.StringVar(&in.StudentID, "student-id", "", "nine digit student id")
	fs.StringVar(&in.StudentName, "student-name", "", "student name")
	fs.IntVar(&in.BuildingID, "building", 0, "building id")
	fs.IntVar(&in.RoomID, "room", 0, "room id")
	fs.StringVar(&in.Semester, "semester", "", "semester, e.g. Fall 2024")
	fs.StringVar(&in.Justification, "justification", "", "why access is needed")
	fs.StringVar(&in.Priority, "priority", "", "display priority")
	fs.BoolVar(&wait, "wait", false, "wait for the simulated review to finish")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := c.app.Lifecycle.CreateRequest(ctx, u, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %s (%s)\n", req.ID, req.Status)
	if !wait {
		return nil
	}

	fmt.Fprintln(c.out, "Waiting for review...")
	select {
	case status, ok := <-c.app.Lifecycle.AutoAdvance(ctx, req.ID):
		if !ok {
			return fmt.Errorf("request %s disappeared during review", req.ID)
		}
		fmt.Fprintf(c.out, "%s is now %s\n", req.ID, status)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *cli) requestList(ctx context.Context, u *model.User, args []string) error {
	var statusFilter string
	fs := c.flags("request list")
	fs.StringVar(&statusFilter, "status", "", "only show this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var want model.Status
	if statusFilter != "" {
		st, err := model.ParseStatus(statusFilter)
		if err != nil {
			return err
		}
		want = st
	}

	reqs, err := c.app.Lifecycle.VisibleRequests(ctx, u)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBUILDING\tROOM\tSUBJECT\tREQUESTED")
	n := 0
	for _, r := range reqs {
		if want != "" && r.Status != want {
			continue
		}
		n++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, buildingName(r.BuildingID), roomName(r.RoomID), subject(r), r.RequestedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(c.out, "No requests")
	}
	return nil
}

func (c *cli) printRequest(r *model.Request) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	fmt.Fprintf(tw, "Priority\t%s\n", r.Priority)
	if r.Form == model.FormGeneral {
		fmt.Fprintf(tw, "Title\t%s\n", r.Title)
		fmt.Fprintf(tw, "Details\t%s\n", r.Details)
	} else {
		fmt.Fprintf(tw, "Student\t%s %s\n", r.StudentID, r.StudentName)
		fmt.Fprintf(tw, "Building\t%s\n", buildingName(r.BuildingID))
		fmt.Fprintf(tw, "Room\t%s\n", roomName(r.RoomID))
		fmt.Fprintf(tw, "Semester\t%s\n", r.Semester)
		fmt.Fprintf(tw, "Justification\t%s\n", r.Justification)
	}
	fmt.Fprintf(tw, "Requested by\t%s %s\n", r.RequestedBy, r.RequesterName)
	fmt.Fprintf(tw, "Requested at\t%s\n", r.RequestedAt.Local().Format(time.RFC1123))
	if r.ActionTakenBy != nil {
		fmt.Fprintf(tw, "Action by\t%s\n", *r.ActionTakenBy)
	}
	if r.ActionTakenAt != nil {
		fmt.Fprintf(tw, "Action at\t%s\n", r.ActionTakenAt.Local().Format(time.RFC1123))
	}
	return tw.Flush()
}

// ============================================================================
// 用户审批
// ============================================================================

func (c *cli) users(ctx context.Context, args []string) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: accessctl users pending|approve <id>")
	}
	switch args[0] {
	case "pending":
		pending, err := c.app.Lifecycle.PendingUsers(ctx, u)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(c.out, "No users awaiting approval")
			return nil
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tBUILDING")
		for _, p := range pending {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Email, p.Role, p.Building)
		}
		return tw.Flush()
	case "approve":
		if len(args) != 2 {
			return fmt.Errorf("usage: accessctl users approve <id>")
		}
		approved, n, err := c.app.Lifecycle.ApproveUser(ctx, u, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Approved %s; %d request(s) marked %s\n", approved.Email, n, model.StatusApprovedByChair)
		return nil
	default:
		return fmt.Errorf("unknown users command %q", args[0])
	}
}

// ============================================================================
// 看板 / 报表 / 推荐
// ============================================================================

func (c *cli) kpis(ctx context.Context) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	k, err := c.app.Lifecycle.KPIs(ctx, u)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", k.Total)
	fmt.Fprintf(tw, "Approved\t%d\n", k.Approved)
	fmt.Fprintf(tw, "Rejected\t%d\n", k.Rejected)
	fmt.Fprintf(tw, "Pending\t%d\n", k.Pending)
	fmt.Fprintf(tw, "Approval rate\t%d%%\n", k.ApprovalRate)
	fmt.Fprintf(tw, "SLA compliance\t%d%%\n", k.SLACompliance)
	fmt.Fprintf(tw, "Avg review\t%d min\n", k.AvgReviewMinutes)
	return tw.Flush()
}

func (c *cli) report(ctx context.Context, args []string) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	var outDir string
	fs := c.flags("report")
	fs.StringVar(&outDir, "out", ".", "directory for the CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !u.Role.ManagesBuildings() {
		return fmt.Errorf("only building managers can export reports")
	}

	store := c.app.Infra.Store
	requests, err := store.ListRequests(ctx)
	if err != nil {
		return err
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	rep := report.ApprovedAccess(requests, users, u, c.now())
	data, err := rep.CSV()
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			fmt.Fprintln(c.out, report.NoDataNotice)
			return nil
		}
		return err
	}

	path := filepath.Join(outDir, rep.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(c.out, "Wrote %d row(s) to %s\n", len(rep.Rows), path)

	if archive := c.app.Infra.Archive; archive != nil {
		key, err := archive.PutReport(ctx, rep.Filename, data)
		if err != nil {
			fmt.Fprintf(c.errOut, "warning: archive failed: %v\n", err)
			return nil
		}
		fmt.Fprintf(c.out, "Archived as %s\n", key)
	}
	return nil
}

func (c *cli) suggest(ctx context.Context, args []string) error {
	if _, err := c.user(); err != nil {
		return err
	}
	justification := strings.Join(args, " ")
	if !suggest.ShouldSuggest(justification) {
		return fmt.Errorf("justification must be longer than %d characters", suggest.MinJustificationLength)
	}
	name, err := c.app.Suggester.Suggest(ctx, justification)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(c.out, "No suggestion")
		return nil
	}
	fmt.Fprintf(c.out, "Suggested building: %s\n", name)
	return nil
}

// ============================================================================
// 展示辅助
// ============================================================================

func buildingName(id int) string {
	if b, ok := model.BuildingByID(id); ok {
		return b.Name
	}
	return "-"
}

func roomName(id int) string {
	if r, ok := model.RoomByID(id); ok {
		return r.Name
	}
	return "-"
}

func buildingList(ids []int) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, buildingName(id))
	}
	return strings.Join(names, ", ")
}

func subject(r *model.Request) string {
	if r.Form == model.FormGeneral {
		return r.Title
	}
	if r.StudentName != "" {
		return r.StudentName
	}
	return r.StudentID
}
