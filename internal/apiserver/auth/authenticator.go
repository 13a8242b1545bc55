package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

var (
	// ErrInvalidCredentials 标识或密码不匹配
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotApproved 账号尚未审批（仅 RequireApproved 时返回）
	ErrNotApproved = errors.New("account is pending approval")
)

// Authenticator 登录、注册与资料补全
type Authenticator struct {
	store storage.IdentityStore
	cfg   Config
	log   *logging.Logger
	now   func() time.Time
}

// NewAuthenticator 创建认证器
func NewAuthenticator(store storage.IdentityStore, cfg Config, log *logging.Logger) *Authenticator {
	if log == nil {
		log = logging.Default("auth")
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = DefaultConfig().EmailDomain
	}
	return &Authenticator{store: store, cfg: cfg, log: log, now: time.Now}
}

// Config 返回认证配置
func (a *Authenticator) Config() Config {
	return a.cfg
}

// FindByCredentials 按标识（邮箱或用户名，大小写不敏感）与密码查找用户
//
// 未找到或密码不匹配都返回 ErrInvalidCredentials。
func (a *Authenticator) FindByCredentials(ctx context.Context, identifier, secret string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := a.store.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !CheckPassword(secret, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login 登录
//
// 默认不检查 approved，未审批账号也能登录；RequireApproved 打开后返回 ErrNotApproved。
func (a *Authenticator) Login(ctx context.Context, identifier, secret string) (*model.User, error) {
	user, err := a.FindByCredentials(ctx, identifier, secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			a.log.WithContext(ctx).Info("Login failed", "identifier", identifier)
		}
		return nil, err
	}
	if a.cfg.RequireApproved && !user.Approved && user.Role != model.RoleAdmin {
		return nil, ErrNotApproved
	}
	a.log.WithContext(ctx).Info("User logged in", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// SignupInput 注册输入
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup 注册教职工账号
//
// 新账号为 professor，未审批，可以提交申请，楼栋待资料页补充。
// 邮箱已存在返回 storage.ErrDuplicate。
func (a *Authenticator) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	verr := &model.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "name is required")
	}
	if in.Email == "" {
		verr.Add("email", "email is required")
	} else if !strings.HasSuffix(strings.ToLower(in.Email), strings.ToLower(a.cfg.EmailDomain)) {
		verr.Add("email", "please use an "+a.cfg.EmailDomain+" email")
	}
	if in.Password == "" {
		verr.Add("password", "password is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	existing, err := a.store.GetUserByIdentifier(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, storage.ErrDuplicate
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := a.now().UTC()
	user := &model.User{
		ID:           "usr-" + uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleProfessor,
		Approved:     false,
		CanRequest:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	a.log.WithContext(ctx).Info("User signed up", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// ProfileInput 资料补全输入
type ProfileInput struct {
	Building string `json:"building"`
	Role     string `json:"role"`
	// Office 三位办公室号，填写时生成教职工编号
	Office string `json:"office,omitempty"`
}

// profileRoles 资料页可选角色
var profileRoles = map[model.Role]bool{
	model.RoleProfessor:  true,
	model.RoleResearcher: true,
}

// CompleteProfile 设置楼栋与角色
func (a *Authenticator) CompleteProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	user, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}

	verr := &model.ValidationError{}
	building, ok := model.BuildingByName(trimHall(in.Building))
	if !ok {
		verr.Add("building", "building must be one of "+strings.Join(model.BuildingNames(), ", "))
	}
	role := user.Role
	if strings.TrimSpace(in.Role) != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil || !profileRoles[r] {
			verr.Add("role", "role must be professor or researcher")
		} else {
			role = r
		}
	}
	if !profileRoles[role] {
		verr.Add("role", "profile can only be completed by professors or researchers")
	}
	var facultyID string
	if ok && strings.TrimSpace(in.Office) != "" {
		id, err := model.FacultyID(role, building.Name, in.Office)
		if err != nil {
			var fe *model.ValidationError
			if errors.As(err, &fe) {
				for k, v := range fe.Fields {
					verr.Add(k, v)
				}
			}
		}
		facultyID = id
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user.Building = building.Name
	user.Role = role
	if facultyID != "" {
		user.FacultyID = facultyID
	}
	if err := a.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	a.log.WithContext(ctx).Info("Profile completed", "user_id", user.ID, "building", user.Building, "role", string(user.Role))
	return user, nil
}

// trimHall "McNair Hall" → "McNair"
func trimHall(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 && strings.EqualFold(s[len(s)-5:], " hall") {
		return strings.TrimSpace(s[:len(s)-5])
	}
	return s
}
