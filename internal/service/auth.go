package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"infopics/internal/biz/model"
	"infopics/internal/pkg/oauth"

	"go.uber.org/zap"
)

// AuthService 注册/登录相关的 HTTP 入口
// 浏览器表单走 flash + 重定向 (PRG), 带 Accept: application/json 的调用方拿到状态码和 JSON
type AuthService struct {
	onboarding model.Onboarding
	sessions   *SessionManager
	provider   oauth.Provider
	signer     *oauth.StateSigner
	l          *zap.Logger
}

func NewAuthService(
	onboarding model.Onboarding,
	sessions *SessionManager,
	provider oauth.Provider,
	signer *oauth.StateSigner,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		onboarding: onboarding,
		sessions:   sessions,
		provider:   provider,
		signer:     signer,
		l:          logger,
	}
}

// RegisterRoutes 注册路由
func (s *AuthService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /signup", s.SignupForm)
	mux.HandleFunc("POST /signup", s.Signup)
	mux.HandleFunc("GET /login", s.LoginForm)
	mux.HandleFunc("POST /login", s.Login)
	mux.HandleFunc("GET /logout", s.Logout)
	mux.HandleFunc("GET /auth/google", s.GoogleStart)
	mux.HandleFunc("GET /auth/google/attach", s.GoogleAttach)
	mux.HandleFunc("GET /auth/google/callback", s.GoogleCallback)
	mux.HandleFunc("GET /create-account", s.CreateAccountForm)
	mux.HandleFunc("POST /create-account", s.CreateAccount)
	mux.HandleFunc("GET /verify", s.VerifyForm)
	mux.HandleFunc("POST /verify", s.Verify)
	mux.HandleFunc("POST /verify/resend", s.Resend)
	mux.HandleFunc("GET /posts", s.Posts)
	mux.HandleFunc("GET /{$}", s.Posts)
}

// Signup 本地注册入口: Anonymous -> AwaitingVerification
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	err := s.onboarding.BeginLocalSignup(r.Context(),
		sess,
		r.PostFormValue("username"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	switch {
	case err == nil:
		s.succeed(w, r, sid, sess, "success", "We emailed you a 6-digit verification code.", "/verify")
	case model.IsUpstream(err):
		// 验证码已落库, 投递失败不阻断, 用户在 /verify 页可以重发
		s.succeed(w, r, sid, sess, "warning", userMessage(err), "/verify")
	default:
		s.fail(w, r, sid, sess, err, "/signup")
	}
}

// Login 本地凭证登录
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	redirect, err := s.onboarding.Login(r.Context(),
		sess,
		r.PostFormValue("identifier"),
		r.PostFormValue("password"),
	)
	if err != nil {
		s.fail(w, r, sid, sess, err, "/login")
		return
	}

	s.succeed(w, r, sid, sess, "success", "Welcome back to InfoPics!", redirect)
}

// Logout 登出并销毁会话
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	if err := s.onboarding.Logout(r.Context(), sess); err != nil {
		s.fail(w, r, sid, sess, err, "/posts")
		return
	}
	if err := s.sessions.Destroy(r.Context(), w, sid); err != nil {
		s.l.Error("Destroying session failed", zap.Error(err))
	}

	// 旧会话已销毁, 换一个新会话携带告别消息
	fresh := &model.SessionState{}
	fresh.AddFlash("success", "You are logged out!")
	s.redirectSaved(w, r, newSessionID(), fresh, "/posts")
}

// GoogleStart 跳转到 Google 授权页
func (s *AuthService) GoogleStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.signer.Sign(false, r.URL.Query().Get("redirect"))
	if err != nil {
		sid, sess := s.sessions.Load(r)
		s.fail(w, r, sid, sess, err, "/signup")
		return
	}
	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusFound)
}

// GoogleAttach 已登录用户发起的绑定流程
// 绑定意图同时写进会话和 state JWT, 回调时双重确认
func (s *AuthService) GoogleAttach(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	if !sess.LoggedIn() {
		sess.RedirectURL = r.URL.Path
		sess.AddFlash("error", "You must be logged in to link a Google account.")
		s.redirectSaved(w, r, sid, sess, "/login")
		return
	}

	sess.AttachGoogle = true
	state, err := s.signer.Sign(true, "")
	if err != nil {
		s.fail(w, r, sid, sess, err, "/posts")
		return
	}
	if err := s.sessions.Save(r.Context(), w, sid, sess); err != nil {
		s.fail(w, r, sid, sess, err, "/posts")
		return
	}
	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusFound)
}

// GoogleCallback Google 回调: Anonymous -> Authenticated | AwaitingCredentialsChoice
func (s *AuthService) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		s.l.Warn("Google callback returned error", zap.String("error", errParam))
		sess.AddFlash("error", "Something went wrong with Google login.")
		s.redirectSaved(w, r, sid, sess, "/signup")
		return
	}

	claims, err := s.signer.Verify(q.Get("state"))
	if err != nil {
		s.l.Warn("Invalid OAuth state", zap.Error(err))
		sess.AddFlash("error", "Authentication failed. Try signing in with Google again.")
		s.redirectSaved(w, r, sid, sess, "/signup")
		return
	}

	token, err := s.provider.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		s.fail(w, r, sid, sess, &model.UpstreamError{Op: "oauth exchange", Err: err}, "/signup")
		return
	}
	profile, err := s.provider.Profile(r.Context(), token)
	if err != nil {
		s.fail(w, r, sid, sess, &model.UpstreamError{Op: "oauth profile", Err: err}, "/signup")
		return
	}

	// state JWT 是绑定意图的权威来源, 会话副本仅用于预先标记
	sess.AttachGoogle = sess.AttachGoogle && claims.Attach
	if claims.Redirect != "" && sess.RedirectURL == "" {
		sess.RedirectURL = claims.Redirect
	}

	res, err := s.onboarding.BeginExternalSignup(r.Context(), sess, profile)
	if err != nil && !model.IsUpstream(err) {
		target := "/signup"
		if sess.LoggedIn() {
			// 绑定冲突: 回到已登录页面而不是注册页
			target = "/posts"
		}
		s.fail(w, r, sid, sess, err, target)
		return
	}

	switch res.Kind {
	case model.ResolutionLoggedIn:
		redirect := sess.RedirectURL
		sess.RedirectURL = ""
		if redirect == "" {
			redirect = "/posts"
		}
		s.succeed(w, r, sid, sess, "success", "Welcome back to InfoPics!", redirect)
	case model.ResolutionNeedsOnboarding:
		if model.IsUpstream(err) {
			sess.AddFlash("warning", userMessage(err))
		}
		s.succeed(w, r, sid, sess, "info", "Almost there! Pick a username to finish signing up.", "/create-account")
	}
}

// CreateAccount 补全用户名/密码: AwaitingCredentialsChoice -> AwaitingVerification
func (s *AuthService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	err := s.onboarding.ChooseUsername(r.Context(),
		sess,
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	switch {
	case err == nil:
		s.succeed(w, r, sid, sess, "success", "Now enter the code we emailed you.", "/verify")
	case model.IsNotFound(err):
		s.fail(w, r, sid, sess, err, "/signup")
	default:
		s.fail(w, r, sid, sess, err, "/create-account")
	}
}

// Verify 验证码提交: AwaitingVerification -> Authenticated
func (s *AuthService) Verify(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	err := s.onboarding.SubmitCode(r.Context(), sess, r.PostFormValue("code"))
	switch {
	case err == nil:
		s.succeed(w, r, sid, sess, "success", "Your email has been verified. Welcome to InfoPics!", "/posts")
	case missingUsername(err):
		s.fail(w, r, sid, sess, err, "/create-account")
	case model.IsConflict(err):
		// 并发注册抢走了用户名, 回去重新选
		s.fail(w, r, sid, sess, err, "/create-account")
	case model.IsNotFound(err):
		s.fail(w, r, sid, sess, err, "/signup")
	default:
		s.fail(w, r, sid, sess, err, "/verify")
	}
}

// Resend 重发验证码
func (s *AuthService) Resend(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)

	err := s.onboarding.Resend(r.Context(), sess)
	switch {
	case err == nil:
		s.succeed(w, r, sid, sess, "success", "We sent you a new code.", "/verify")
	case model.IsUpstream(err):
		s.fail(w, r, sid, sess, err, "/verify")
	case model.IsNotFound(err):
		s.fail(w, r, sid, sess, err, "/signup")
	default:
		s.fail(w, r, sid, sess, err, "/verify")
	}
}

// succeed 记录成功 flash, 持久化会话后重定向
// 会话写入必须先于重定向完成, 下一个请求依赖它
func (s *AuthService) succeed(w http.ResponseWriter, r *http.Request, sid string, sess *model.SessionState, kind, message, target string) {
	if wantsJSON(r) {
		if err := s.sessions.Save(r.Context(), w, sid, sess); err != nil {
			s.internalError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": message, "redirect": target})
		return
	}

	sess.AddFlash(kind, message)
	s.redirectSaved(w, r, sid, sess, target)
}

// fail 把领域错误转成用户可见的 flash + 重定向, 或 JSON + 状态码
func (s *AuthService) fail(w http.ResponseWriter, r *http.Request, sid string, sess *model.SessionState, err error, target string) {
	status := statusFor(err)
	message := userMessage(err)
	if status == http.StatusInternalServerError {
		s.l.Error("Unhandled error in auth handler",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
		return
	}

	sess.AddFlash("error", message)
	s.redirectSaved(w, r, sid, sess, target)
}

func (s *AuthService) redirectSaved(w http.ResponseWriter, r *http.Request, sid string, sess *model.SessionState, target string) {
	if err := s.sessions.Save(r.Context(), w, sid, sess); err != nil {
		s.internalError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *AuthService) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.l.Error("Persisting session failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case model.IsAuth(err):
		return http.StatusUnauthorized
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsConflict(err):
		return http.StatusConflict
	case model.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage 领域错误对应的用户可见文案
func userMessage(err error) string {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		switch ve.Field {
		case "username":
			if ve.Reason == "choose a username first" {
				return "Please choose a username first."
			}
			return "Username must be at least 3 characters."
		case "email":
			return "Please enter a valid email address."
		case "password":
			return "Password must be at least 6 characters."
		case "code":
			return "Invalid verification code. Please try again."
		}
		return "Invalid input. Please check the form and try again."
	}

	var ce *model.ConflictError
	if errors.As(err, &ce) {
		switch ce.Field {
		case "username":
			return "Username already taken. Please choose another."
		case "email":
			return "An account with this email already exists. Try signing in instead."
		case "google_id":
			return "This Google account is already linked to another user."
		}
		return "That choice is already taken. Please pick another."
	}

	switch {
	case model.IsAuth(err):
		return "Invalid username or password."
	case model.IsNotFound(err):
		return "Session expired or no signup in progress. Please start again."
	case model.IsUpstream(err):
		return "We couldn't send the email. Please try resending the code."
	default:
		return "Something went wrong. Please try again."
	}
}

func missingUsername(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve) && ve.Field == "username"
}
