package biz

import (
	"context"
	"fmt"

	"infopics/internal/biz/model"
	"infopics/internal/conf"
	"infopics/internal/data"

	"go.uber.org/zap"
)

// IdentityResolver 外部身份解析器
// 把归一化后的 OAuth 身份匹配到已有账号/临时注册/全新用户三类情况之一
type IdentityResolver interface {
	Resolve(ctx context.Context, sess *model.SessionState, profile model.ExternalProfile) (*model.Resolution, error)
}

type identityResolver struct {
	users data.UserRepo
	cfg   *conf.Auth
	l     *zap.Logger
}

func NewIdentityResolver(users data.UserRepo, cfg *conf.Bootstrap, logger *zap.Logger) IdentityResolver {
	return &identityResolver{
		users: users,
		cfg:   cfg.Auth,
		l:     logger,
	}
}

// Resolve 按优先级判定回调的归宿, 除显式绑定外不产生任何写入
//  1. 已登录用户带绑定意图: 执行绑定
//  2. 外部身份已关联某账号: 直接登录
//  3. 邮箱命中已有账号但未关联: 默认不自动绑定, 交给用户确认
//  4. 全新用户: 进入注册确认流程
func (r *identityResolver) Resolve(ctx context.Context, sess *model.SessionState, profile model.ExternalProfile) (*model.Resolution, error) {
	// 1. 绑定意图
	if sess.AttachGoogle && sess.LoggedIn() {
		if err := r.users.AttachGoogleID(ctx, sess.UserID, profile.ID, profile.Picture); err != nil {
			return nil, err
		}
		user, err := r.users.FindByID(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("reload user after attach failed: %w", err)
		}
		r.l.Info("External identity attached",
			zap.String("user_id", user.ID),
			zap.String("google_id", profile.ID),
		)
		return &model.Resolution{Kind: model.ResolutionLoggedIn, User: user}, nil
	}

	// 2. 外部身份已知
	user, err := r.users.FindByGoogleID(ctx, profile.ID)
	if err == nil {
		return &model.Resolution{Kind: model.ResolutionLoggedIn, User: user}, nil
	}
	if !model.IsNotFound(err) {
		return nil, err
	}

	// 3. 邮箱已知但未关联外部身份
	// 邮箱声明可伪造, 静默绑定等于把账号交给声明者, 默认必须经人工确认
	existing, err := r.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		if r.cfg != nil && r.cfg.AutoLinkByEmail && profile.EmailVerified {
			if err := r.users.AttachGoogleID(ctx, existing.ID, profile.ID, profile.Picture); err != nil {
				return nil, err
			}
			r.l.Info("External identity auto-linked by verified email",
				zap.String("user_id", existing.ID),
			)
			return &model.Resolution{Kind: model.ResolutionLoggedIn, User: existing}, nil
		}
		return &model.Resolution{Kind: model.ResolutionNeedsOnboarding, Preview: profile.TempUser()}, nil
	}
	if !model.IsNotFound(err) {
		return nil, err
	}

	// 4. 全新用户
	return &model.Resolution{Kind: model.ResolutionNeedsOnboarding, Preview: profile.TempUser()}, nil
}
