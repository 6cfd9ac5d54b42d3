package mail

import (
	"context"
	"fmt"

	"infopics/internal/conf"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module 提供 Fx 模块
var Module = fx.Module("mail",
	fx.Provide(NewSMTPMailer),
)

// Mailer 邮件发送协作方
// 发送失败由调用方决定如何处理, 本层只负责投递和记录
type Mailer interface {
	Send(ctx context.Context, to, subject, bodyText string) error
}

type smtpMailer struct {
	client *gomail.Client
	from   string
	l      *zap.Logger
}

func NewSMTPMailer(cfg *conf.Bootstrap, logger *zap.Logger) (Mailer, error) {
	mailCfg := cfg.Mail

	opts := []gomail.Option{
		gomail.WithPort(int(mailCfg.Port)),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(mailCfg.Username),
		gomail.WithPassword(mailCfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}

	client, err := gomail.NewClient(mailCfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client failed: %v", err)
	}

	return &smtpMailer{
		client: client,
		from:   mailCfg.From,
		l:      logger,
	}, nil
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, bodyText string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set mail from failed: %v", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set mail recipient failed: %v", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, bodyText)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}

	m.l.Info("Verification email sent", zap.String("to", to))
	return nil
}
