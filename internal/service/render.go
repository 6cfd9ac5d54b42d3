package service

import (
	"html/template"
	"net/http"

	"infopics/internal/biz/model"

	"go.uber.org/zap"
)

// 页面渲染刻意保持最小: 完整的视图层不在本服务范围内,
// 这里只提供注册流程自测所需的裸表单
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><title>InfoPics — {{.Title}}</title></head>
<body>
{{range .Flash}}<p class="flash flash-{{.Kind}}">{{.Text}}</p>{{end}}
{{if eq .Page "signup"}}
<h1>Sign up</h1>
<form method="post" action="/signup">
  <input name="username" placeholder="Username" value="{{with .TempUser}}{{.Username}}{{end}}">
  <input name="email" placeholder="Email" value="{{with .TempUser}}{{.Email}}{{end}}">
  <input name="password" type="password" placeholder="Password">
  <button type="submit">Create account</button>
</form>
<a href="/auth/google">Continue with Google</a>
{{else if eq .Page "login"}}
<h1>Log in</h1>
<form method="post" action="/login">
  <input name="identifier" placeholder="Username or email">
  <input name="password" type="password" placeholder="Password">
  <button type="submit">Log in</button>
</form>
<a href="/auth/google">Continue with Google</a>
{{else if eq .Page "create-account"}}
<h1>Finish signing up</h1>
{{with .TempUser}}<p><img src="{{.ProfilePic}}" alt="" width="48"> {{.Email}}</p>{{end}}
<form method="post" action="/create-account">
  <input name="username" placeholder="Pick a username" value="{{with .TempUser}}{{.Username}}{{end}}">
  <input name="password" type="password" placeholder="Password (optional for Google signups)">
  <button type="submit">Continue</button>
</form>
{{else if eq .Page "verify"}}
<h1>Verify your email</h1>
<form method="post" action="/verify">
  <input name="code" placeholder="6-digit code" maxlength="6">
  <button type="submit">Verify</button>
</form>
<form method="post" action="/verify/resend"><button type="submit">Resend code</button></form>
{{else}}
<h1>Posts</h1>
{{if .LoggedIn}}<p>You are logged in.</p><a href="/logout">Log out</a> · <a href="/auth/google/attach">Link Google account</a>{{else}}<a href="/login">Log in</a> · <a href="/signup">Sign up</a>{{end}}
{{end}}
</body>
</html>`))

type pageData struct {
	Title    string
	Page     string
	Flash    []model.Flash
	TempUser *model.TempUser
	LoggedIn bool
}

// render 输出页面并消费 flash 消息, 消费后的会话状态立即落盘
func (s *AuthService) render(w http.ResponseWriter, r *http.Request, sid string, sess *model.SessionState, page, title string) {
	data := pageData{
		Title:    title,
		Page:     page,
		Flash:    sess.ConsumeFlash(),
		TempUser: sess.TempUser,
		LoggedIn: sess.LoggedIn(),
	}

	// flash 读取一次即消费, 必须先持久化再渲染
	if err := s.sessions.Save(r.Context(), w, sid, sess); err != nil {
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		s.l.Error("Rendering page failed", zap.String("page", page), zap.Error(err))
	}
}

// SignupForm 注册页
func (s *AuthService) SignupForm(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	s.render(w, r, sid, sess, "signup", "Sign up")
}

// LoginForm 登录页
func (s *AuthService) LoginForm(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	s.render(w, r, sid, sess, "login", "Log in")
}

// CreateAccountForm 外部注册的用户名选择页, 没有进行中的注册时引导回 /signup
func (s *AuthService) CreateAccountForm(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	if sess.TempUser == nil && sess.PendingID == "" {
		sess.AddFlash("info", "Please sign in with Google to continue.")
		s.redirectSaved(w, r, sid, sess, "/signup")
		return
	}
	s.render(w, r, sid, sess, "create-account", "Finish signing up")
}

// VerifyForm 验证码输入页
func (s *AuthService) VerifyForm(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	s.render(w, r, sid, sess, "verify", "Verify your email")
}

// Posts 登陆后的落地页, 帖子功能本身不在本服务范围内
func (s *AuthService) Posts(w http.ResponseWriter, r *http.Request) {
	sid, sess := s.sessions.Load(r)
	s.render(w, r, sid, sess, "posts", "Posts")
}
