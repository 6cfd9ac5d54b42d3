package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"infopics/internal/biz/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PendingTTL 临时注册记录的存活时间, 过期记录对调用方不可见
const PendingTTL = time.Hour

// PendingRepo 临时注册记录的数据访问接口
type PendingRepo interface {
	UpsertByEmail(ctx context.Context, pending *model.PendingSignup) (*model.PendingSignup, error)
	FindByID(ctx context.Context, id string) (*model.PendingSignup, error)
	FindByCode(ctx context.Context, code string) (*model.PendingSignup, error)
	Update(ctx context.Context, pending *model.PendingSignup) error
	UpdateCode(ctx context.Context, id, code string) error
	DeleteByID(ctx context.Context, id string) error
	ReapExpired(ctx context.Context) (int64, error)
}

type pendingRepo struct {
	pool *pgxpool.Pool
	l    *zap.Logger
}

func NewPendingRepo(data *Data, logger *zap.Logger) PendingRepo {
	return &pendingRepo{
		pool: data.db,
		l:    logger,
	}
}

const pendingColumns = `id, email, COALESCE(username, ''), COALESCE(password_hash, ''), COALESCE(google_id, ''), profile_pic, code, source, created_at`

// notExpired 所有读取都要过滤掉超过 TTL 的记录, 过期即等同不存在
const notExpired = `created_at > now() - interval '1 hour'`

func (r *pendingRepo) scanPending(row pgx.Row) (*model.PendingSignup, error) {
	p := &model.PendingSignup{}
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.PasswordHash, &p.GoogleID,
		&p.ProfilePic, &p.Code, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{Resource: "pending signup"}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// UpsertByEmail 写入或覆盖同一邮箱的临时注册, 最后一次注册尝试获胜
// created_at 一并重置, TTL 从最新尝试重新计时
func (r *pendingRepo) UpsertByEmail(ctx context.Context, pending *model.PendingSignup) (*model.PendingSignup, error) {
	if pending.ID == "" {
		pending.ID = uuid.NewString()
	}
	if pending.ProfilePic == "" {
		pending.ProfilePic = model.DefaultAvatar
	}

	query := `
		INSERT INTO pending_signups (id, email, username, password_hash, google_id, profile_pic, code, source)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			google_id = EXCLUDED.google_id,
			profile_pic = EXCLUDED.profile_pic,
			code = EXCLUDED.code,
			source = EXCLUDED.source,
			created_at = now()
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		pending.ID, strings.ToLower(strings.TrimSpace(pending.Email)), pending.Username,
		pending.PasswordHash, pending.GoogleID, pending.ProfilePic, pending.Code, pending.Source,
	).Scan(&pending.ID, &pending.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pending, nil
}

func (r *pendingRepo) FindByID(ctx context.Context, id string) (*model.PendingSignup, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_signups WHERE id = $1 AND ` + notExpired
	return r.scanPending(r.pool.QueryRow(ctx, query, id))
}

// FindByCode 按验证码查找
// 6 位验证码可能跨记录撞码, 取最近创建的一条
func (r *pendingRepo) FindByCode(ctx context.Context, code string) (*model.PendingSignup, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_signups WHERE code = $1 AND ` + notExpired + `
		ORDER BY created_at DESC LIMIT 1`
	return r.scanPending(r.pool.QueryRow(ctx, query, code))
}

// Update 更新用户名/凭证等字段, 不触碰 created_at
func (r *pendingRepo) Update(ctx context.Context, pending *model.PendingSignup) error {
	query := `
		UPDATE pending_signups
		SET username = NULLIF($2, ''), password_hash = NULLIF($3, ''), profile_pic = $4
		WHERE id = $1 AND ` + notExpired
	tag, err := r.pool.Exec(ctx, query, pending.ID, pending.Username, pending.PasswordHash, pending.ProfilePic)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Resource: "pending signup"}
	}
	return nil
}

func (r *pendingRepo) UpdateCode(ctx context.Context, id, code string) error {
	query := `UPDATE pending_signups SET code = $2 WHERE id = $1 AND ` + notExpired
	tag, err := r.pool.Exec(ctx, query, id, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Resource: "pending signup"}
	}
	return nil
}

func (r *pendingRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pending_signups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ReapExpired 物理删除过期记录, TTL 过滤已经保证读不到它们
func (r *pendingRepo) ReapExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_signups WHERE created_at <= now() - interval '1 hour'`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartPendingJanitor 启动后台清理协程, 定期回收过期的临时注册记录
func StartPendingJanitor(lc fx.Lifecycle, repo PendingRepo, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(10 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						reaped, err := repo.ReapExpired(ctx)
						if err != nil {
							logger.Warn("Reaping expired pending signups failed", zap.Error(err))
							continue
						}
						if reaped > 0 {
							logger.Info("Reaped expired pending signups", zap.Int64("count", reaped))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
