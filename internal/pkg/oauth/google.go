package oauth

import (
	"context"
	"fmt"

	"infopics/internal/biz/model"
	"infopics/internal/conf"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Module 提供 Fx 模块
var Module = fx.Module("oauth",
	fx.Provide(
		NewGoogleProvider,
		NewStateSigner,
	),
)

// Provider 外部身份提供方客户端
// 回调载荷在这里被归一化为 model.ExternalProfile, 业务层不接触原始 claims
type Provider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (model.ExternalProfile, error)
}

type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

func NewGoogleProvider(cfg *conf.Bootstrap) (Provider, error) {
	provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Oauth.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.Oauth.ClientId,
		ClientSecret: cfg.Oauth.ClientSecret,
		RedirectURL:  cfg.Oauth.RedirectUrl,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}

	return &GoogleProvider{
		oauth2Config: oauth2Cfg,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.Oauth.ClientId}),
	}, nil
}

func (p *GoogleProvider) AuthURL(state string) string {
	// select_account: 同一浏览器多 Google 账号时强制弹出账号选择
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth2Config.Exchange(ctx, code)
}

// Profile 校验 ID token 并归一化 claims
func (p *GoogleProvider) Profile(ctx context.Context, token *oauth2.Token) (model.ExternalProfile, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return model.ExternalProfile{}, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return model.ExternalProfile{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return model.ExternalProfile{}, fmt.Errorf("failed to parse claims: %w", err)
	}

	if claims.Email == "" {
		return model.ExternalProfile{}, fmt.Errorf("no email in Google profile")
	}

	return model.ExternalProfile{
		ID:            claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
