package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"infopics/internal/biz/model"
	"infopics/internal/conf"
	"infopics/internal/data"
	"infopics/internal/pkg/hash"

	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// OnboardingUseCase 账号注册与身份归一的状态机
// 三个入口 (本地注册表单, Google 回调, 验证码提交) 都汇聚到这里,
// 每条迁移要么建立权威账号并登录, 要么把会话推进到下一步, 要么带原因拒绝
type OnboardingUseCase struct {
	users    data.UserRepo
	pending  data.PendingRepo
	resolver IdentityResolver
	verifier CodeVerifier
	hasher   hash.Hasher
	cfg      *conf.Auth
	l        *zap.Logger
}

func NewOnboardingUseCase(
	users data.UserRepo,
	pending data.PendingRepo,
	resolver IdentityResolver,
	verifier CodeVerifier,
	hasher hash.Hasher,
	cfg *conf.Bootstrap,
	logger *zap.Logger,
) (model.Onboarding, error) {
	return &OnboardingUseCase{
		users:    users,
		pending:  pending,
		resolver: resolver,
		verifier: verifier,
		hasher:   hasher,
		cfg:      cfg.Auth,
		l:        logger,
	}, nil
}

// BeginLocalSignup 本地注册入口: Anonymous -> AwaitingVerification
// 校验失败不触碰任何存储; 成功后同一邮箱只保留这一条临时注册
func (uc *OnboardingUseCase) BeginLocalSignup(ctx context.Context, sess *model.SessionState, username, email, password string) error {
	username, err := uc.validateUsername(ctx, username)
	if err != nil {
		return err
	}
	email, err = uc.validateEmail(email)
	if err != nil {
		return err
	}
	if len(password) < 6 {
		return &model.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}

	// 邮箱唯一策略开启时, 撞上已有账号直接拒绝, 提示登录而不是静默合并
	if uc.enforceUniqueEmail() {
		if _, err := uc.users.FindByEmail(ctx, email); err == nil {
			return &model.ConflictError{Field: "email"}
		} else if !model.IsNotFound(err) {
			return err
		}
	}

	hashed, err := uc.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}

	code, err := uc.verifier.NewCode()
	if err != nil {
		return err
	}

	p, err := uc.pending.UpsertByEmail(ctx, &model.PendingSignup{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Code:         code,
		Source:       model.SourceLocal,
	})
	if err != nil {
		return err
	}

	uc.stage(sess, p)
	uc.l.Info("Local signup started",
		zap.String("pending_id", p.ID),
		zap.String("username", username),
	)

	// 投递失败不阻断流程, 验证码已落库, 用户可要求重发
	return uc.verifier.Dispatch(ctx, email, code)
}

// BeginExternalSignup 外部身份入口: Anonymous -> Authenticated | AwaitingCredentialsChoice
func (uc *OnboardingUseCase) BeginExternalSignup(ctx context.Context, sess *model.SessionState, profile model.ExternalProfile) (*model.Resolution, error) {
	res, err := uc.resolver.Resolve(ctx, sess, profile)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case model.ResolutionLoggedIn:
		sess.UserID = res.User.ID
		sess.ClearOnboarding()
		return res, nil

	case model.ResolutionNeedsOnboarding:
		code, err := uc.verifier.NewCode()
		if err != nil {
			return nil, err
		}

		p, err := uc.pending.UpsertByEmail(ctx, &model.PendingSignup{
			Email:      res.Preview.Email,
			GoogleID:   res.Preview.GoogleID,
			ProfilePic: res.Preview.ProfilePic,
			Code:       code,
			Source:     model.SourceGoogle,
		})
		if err != nil {
			return nil, err
		}

		sess.UserID = ""
		uc.stage(sess, p)
		// 保留显示名供表单回显, 不会被持久化
		sess.TempUser.Name = res.Preview.Name

		uc.l.Info("External signup started",
			zap.String("pending_id", p.ID),
			zap.String("google_id", res.Preview.GoogleID),
		)
		return res, uc.verifier.Dispatch(ctx, p.Email, code)

	default:
		return nil, fmt.Errorf("unexpected resolution kind: %s", res.Kind)
	}
}

// ChooseUsername 补全用户名和可选密码: AwaitingCredentialsChoice -> AwaitingVerification
// 外部来源的注册可以不提供密码, 内部生成一个随机凭证, 实际登录走外部身份
func (uc *OnboardingUseCase) ChooseUsername(ctx context.Context, sess *model.SessionState, username, password string) error {
	p, err := uc.currentPending(ctx, sess)
	if err != nil {
		return err
	}

	username, err = uc.validateUsername(ctx, username)
	if err != nil {
		return err
	}

	switch {
	case password == "" && p.Source == model.SourceGoogle:
		random, err := randomCredential()
		if err != nil {
			return err
		}
		password = random
	case len(password) < 6:
		return &model.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}

	hashed, err := uc.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}

	p.Username = username
	p.PasswordHash = hashed
	if err := uc.pending.Update(ctx, p); err != nil {
		return err
	}

	// 持久记录是事实来源, 会话副本仅用于回显, 这里跟着对齐
	uc.stage(sess, p)
	return nil
}

// SubmitCode 验证码提交: AwaitingVerification -> Authenticated | 原地拒绝
// 匹配成功即 finalize: 建立权威账号, 删除临时记录, 清空注册状态, 登录会话
func (uc *OnboardingUseCase) SubmitCode(ctx context.Context, sess *model.SessionState, code string) error {
	p, err := uc.currentPending(ctx, sess)
	if err != nil {
		// 会话指针失效时退回按验证码全局查找
		if !model.IsNotFound(err) {
			return err
		}
		p, err = uc.pending.FindByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return err
		}
	}

	if !uc.verifier.Check(p.Code, code) {
		return &model.ValidationError{Field: "code", Reason: "incorrect verification code"}
	}

	if p.Username == "" {
		// 外部来源还没选用户名就直接提交了验证码
		return &model.ValidationError{Field: "username", Reason: "choose a username first"}
	}

	user, err := uc.users.Create(ctx, &model.User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		GoogleID:     p.GoogleID,
		ProfilePic:   p.ProfilePic,
		// 验证码经由邮箱送达, 提交成功即证明邮箱属实
		Verified: true,
	})
	if err != nil {
		// 并发注册抢走了用户名: 一方成功一方收到冲突, 由唯一约束裁决
		return err
	}

	if err := uc.pending.DeleteByID(ctx, p.ID); err != nil {
		uc.l.Warn("Deleting promoted pending signup failed", zap.String("pending_id", p.ID), zap.Error(err))
	}

	sess.ClearOnboarding()
	sess.UserID = user.ID

	uc.l.Info("Account finalized",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return nil
}

// Resend 重发验证码: 只换码, 不产生新的临时记录
func (uc *OnboardingUseCase) Resend(ctx context.Context, sess *model.SessionState) error {
	p, err := uc.currentPending(ctx, sess)
	if err != nil {
		return err
	}

	code, err := uc.verifier.NewCode()
	if err != nil {
		return err
	}
	if err := uc.pending.UpdateCode(ctx, p.ID, code); err != nil {
		return err
	}

	return uc.verifier.Dispatch(ctx, p.Email, code)
}

// Login 本地凭证登录
// 标识符先按用户名再按邮箱匹配; 任何一步失败都返回同样的泛化错误
func (uc *OnboardingUseCase) Login(ctx context.Context, sess *model.SessionState, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := uc.users.FindByUsername(ctx, identifier)
	if model.IsNotFound(err) {
		user, err = uc.users.FindByEmail(ctx, identifier)
	}
	if err != nil {
		if model.IsNotFound(err) {
			return "", &model.AuthError{}
		}
		return "", err
	}

	if !uc.hasher.Compare(password, user.PasswordHash) {
		return "", &model.AuthError{}
	}

	sess.UserID = user.ID
	sess.ClearOnboarding()

	redirect := sess.RedirectURL
	sess.RedirectURL = ""
	if redirect == "" {
		redirect = "/posts"
	}
	return redirect, nil
}

// Logout 登出: 清空会话值, 外部存储的销毁由 HTTP 层完成
func (uc *OnboardingUseCase) Logout(_ context.Context, sess *model.SessionState) error {
	*sess = model.SessionState{}
	return nil
}

// currentPending 按会话指针解析当前临时注册, 持久记录是唯一事实来源
func (uc *OnboardingUseCase) currentPending(ctx context.Context, sess *model.SessionState) (*model.PendingSignup, error) {
	if sess.PendingID == "" {
		return nil, &model.NotFoundError{Resource: "pending signup"}
	}
	return uc.pending.FindByID(ctx, sess.PendingID)
}

// stage 把临时注册写进会话: 指针 + 表单回显预览
func (uc *OnboardingUseCase) stage(sess *model.SessionState, p *model.PendingSignup) {
	sess.PendingID = p.ID
	sess.TempUser = &model.TempUser{
		Username:   p.Username,
		Email:      p.Email,
		ProfilePic: p.ProfilePic,
		GoogleID:   p.GoogleID,
		Source:     p.Source,
	}
}

func (uc *OnboardingUseCase) validateUsername(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return "", &model.ValidationError{Field: "username", Reason: "must be at least 3 characters"}
	}

	// 预检查只为给出友好提示, 并发竞争下最终以写入时的唯一约束为准
	if _, err := uc.users.FindByUsername(ctx, username); err == nil {
		return "", &model.ConflictError{Field: "username"}
	} else if !model.IsNotFound(err) {
		return "", err
	}

	return username, nil
}

func (uc *OnboardingUseCase) validateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", &model.ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	return email, nil
}

func (uc *OnboardingUseCase) enforceUniqueEmail() bool {
	return uc.cfg != nil && uc.cfg.EnforceUniqueEmail
}

// randomCredential 为纯外部登录的账号生成内部随机凭证
func randomCredential() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random credential failed: %v", err)
	}
	return hex.EncodeToString(buf), nil
}
