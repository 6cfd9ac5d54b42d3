package oauth

import (
	"crypto/rand"
	"fmt"
	"time"

	"infopics/internal/conf"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stateTTL state 参数的有效期, 超过即视为回调过期
const stateTTL = 10 * time.Minute

// StateClaims OAuth state 参数携带的内容
// attach 表示这是已登录用户发起的绑定流程而不是注册/登录
type StateClaims struct {
	Attach   bool   `json:"attach,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner 用 HS256 JWT 签发和校验 OAuth state 参数, 抵御回调伪造
type StateSigner struct {
	secret []byte
}

func NewStateSigner(cfg *conf.Bootstrap, logger *zap.Logger) (*StateSigner, error) {
	var secret []byte
	if cfg.Auth != nil && cfg.Auth.StateSecret != "" {
		secret = []byte(cfg.Auth.StateSecret)
	} else {
		// 生成默认密钥
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate state secret failed: %v", err)
		}
		logger.Warn("WARNING: Using auto-generated OAuth state secret, set auth.state_secret in config for production")
	}

	return &StateSigner{secret: secret}, nil
}

func (s *StateSigner) Sign(attach bool, redirect string) (string, error) {
	now := time.Now()
	claims := StateClaims{
		Attach:   attach,
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *StateSigner) Verify(raw string) (*StateClaims, error) {
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	return claims, nil
}
