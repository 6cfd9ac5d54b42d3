package model

import (
	"context"
	"time"
)

// 注册来源
const (
	SourceLocal  = "local"
	SourceGoogle = "google"
)

// DefaultAvatar 默认头像
const DefaultAvatar = "/images/default-avatar.png"

// User 业务层用户模型, 唯一的权威账号记录
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	GoogleID     string
	ProfilePic   string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingSignup 待验证的临时注册记录, 邮箱验证通过后才会升级为 User
// 同一邮箱最多保留一条, 超过 1 小时由存储层过期
type PendingSignup struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	GoogleID     string
	ProfilePic   string
	Code         string
	Source       string
	CreatedAt    time.Time
}

// ExternalProfile 归一化后的外部身份信息
// 所有上游 OAuth 回调载荷在进入业务层之前都必须先转换成该结构
type ExternalProfile struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// TempUser 会话中携带的注册预览, 仅用于表单回显, 不含任何凭证
type TempUser struct {
	Username   string `json:"username,omitempty"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	ProfilePic string `json:"profile_pic,omitempty"`
	GoogleID   string `json:"google_id,omitempty"`
	Source     string `json:"source"`
}

// TempUser 把外部身份转换成会话预览
func (p ExternalProfile) TempUser() *TempUser {
	pic := p.Picture
	if pic == "" {
		pic = DefaultAvatar
	}
	return &TempUser{
		Email:      p.Email,
		Name:       p.Name,
		ProfilePic: pic,
		GoogleID:   p.ID,
		Source:     SourceGoogle,
	}
}

// Flash 闪存消息, 读取一次即消费
type Flash struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// SessionState 每个浏览器会话携带的注册中间状态
// 编排器只读写该值, 由 HTTP 层负责从会话存储加载和落盘
type SessionState struct {
	UserID       string    `json:"user_id,omitempty"`
	TempUser     *TempUser `json:"temp_user,omitempty"`
	PendingID    string    `json:"pending_id,omitempty"`
	AttachGoogle bool      `json:"attach_google,omitempty"`
	RedirectURL  string    `json:"redirect_url,omitempty"`
	Flash        []Flash   `json:"flash,omitempty"`
}

// LoggedIn 是否已认证
func (s *SessionState) LoggedIn() bool {
	return s.UserID != ""
}

// AddFlash 追加一条闪存消息
func (s *SessionState) AddFlash(kind, text string) {
	s.Flash = append(s.Flash, Flash{Kind: kind, Text: text})
}

// ConsumeFlash 取出并清空全部闪存消息
func (s *SessionState) ConsumeFlash() []Flash {
	out := s.Flash
	s.Flash = nil
	return out
}

// ClearOnboarding 清除注册中间状态, 成功完成或取消时调用
func (s *SessionState) ClearOnboarding() {
	s.TempUser = nil
	s.PendingID = ""
	s.AttachGoogle = false
}

// ResolutionKind 外部身份解析结果类型
type ResolutionKind string

const (
	// ResolutionLoggedIn 命中已有账号, 直接登录
	ResolutionLoggedIn ResolutionKind = "logged_in"
	// ResolutionNeedsOnboarding 无法安全匹配, 需要用户走注册确认流程
	ResolutionNeedsOnboarding ResolutionKind = "needs_onboarding"
)

// Resolution 外部身份解析结果
type Resolution struct {
	Kind    ResolutionKind
	User    *User
	Preview *TempUser
}

// Onboarding 账号注册编排器接口
// 每个方法对应状态机的一条迁移, 会话状态以值的形式传入并被原地更新
type Onboarding interface {
	BeginLocalSignup(ctx context.Context, sess *SessionState, username, email, password string) error
	BeginExternalSignup(ctx context.Context, sess *SessionState, profile ExternalProfile) (*Resolution, error)
	ChooseUsername(ctx context.Context, sess *SessionState, username, password string) error
	SubmitCode(ctx context.Context, sess *SessionState, code string) error
	Resend(ctx context.Context, sess *SessionState) error
	Login(ctx context.Context, sess *SessionState, identifier, password string) (string, error)
	Logout(ctx context.Context, sess *SessionState) error
}
