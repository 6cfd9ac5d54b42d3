package service

import (
	"context"
	"net/http"
	"time"

	"infopics/internal/biz/model"
	"infopics/internal/conf"
	"infopics/internal/data"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookie 浏览器会话 cookie 名
const SessionCookie = "infopics_sid"

// SessionManager 把 cookie 中的会话 ID 和外部会话存储粘起来
// 编排器只处理 SessionState 值, 加载和落盘都发生在这一层
type SessionManager struct {
	repo data.SessionRepo
	ttl  time.Duration
	l    *zap.Logger
}

func NewSessionManager(repo data.SessionRepo, cfg *conf.Bootstrap, logger *zap.Logger) *SessionManager {
	ttlHours := int32(0)
	if cfg.Auth != nil {
		ttlHours = cfg.Auth.SessionTtlHours
	}
	if ttlHours == 0 {
		ttlHours = 24 // 默认24小时
	}

	return &SessionManager{
		repo: repo,
		ttl:  time.Duration(ttlHours) * time.Hour,
		l:    logger,
	}
}

func newSessionID() string {
	return uuid.NewString()
}

// Load 取出请求对应的会话状态
// cookie 缺失或指向已过期的会话时发新的会话 ID 和空状态
func (m *SessionManager) Load(r *http.Request) (string, *model.SessionState) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return uuid.NewString(), &model.SessionState{}
	}

	state, err := m.repo.Load(r.Context(), cookie.Value)
	if err != nil {
		if !model.IsNotFound(err) {
			m.l.Error("Loading session failed", zap.Error(err))
		}
		return uuid.NewString(), &model.SessionState{}
	}
	return cookie.Value, state
}

// Save 持久化会话并下发 cookie
// 必须在发出重定向之前同步完成, 后续请求依赖这次写入
func (m *SessionManager) Save(ctx context.Context, w http.ResponseWriter, sid string, state *model.SessionState) error {
	if err := m.repo.Save(ctx, sid, state, m.ttl); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy 销毁会话并作废 cookie
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, sid string) error {
	if err := m.repo.Destroy(ctx, sid); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
