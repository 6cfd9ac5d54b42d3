package biz

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"infopics/internal/biz/model"
	"infopics/internal/pkg/mail"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// CodeVerifier 一次性验证码引擎
type CodeVerifier interface {
	NewCode() (string, error)
	Dispatch(ctx context.Context, email, code string) error
	Check(stored, submitted string) bool
}

type codeVerifier struct {
	mailer mail.Mailer
	l      *zap.Logger
}

func NewCodeVerifier(mailer mail.Mailer, logger *zap.Logger) CodeVerifier {
	return &codeVerifier{
		mailer: mailer,
		l:      logger,
	}
}

// NewCode 生成 6 位等概率随机数字验证码
// 码空间只有 10^6, 跨记录撞码是已知限制, 查找时按最新记录裁决
func (v *codeVerifier) NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate verification code failed: %v", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Dispatch 通过邮件协作方投递验证码, 带有界重试
// 最终失败返回 UpstreamError, 调用方按非致命处理: 验证码已存储, 用户可要求重发
func (v *codeVerifier) Dispatch(ctx context.Context, email, code string) error {
	subject := "Verify your InfoPics account"
	body := fmt.Sprintf("Your verification code is: %s", code)

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := retry.Do(sendCtx, backoff, func(ctx context.Context) error {
		if err := v.mailer.Send(ctx, email, subject, body); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		v.l.Error("Verification email dispatch failed",
			zap.String("email", email),
			zap.Error(err),
		)
		return &model.UpstreamError{Op: "mail", Err: err}
	}

	return nil
}

// Check 裸字符串比较, 去除首尾空白后精确匹配
func (v *codeVerifier) Check(stored, submitted string) bool {
	submitted = strings.TrimSpace(submitted)
	if stored == "" || submitted == "" {
		return false
	}
	return stored == submitted
}
