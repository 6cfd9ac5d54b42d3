package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"infopics/internal/biz/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionRepo 浏览器会话状态的外部存储
// 语义是 get/set/save/destroy: 写入在返回后即持久, HTTP 层必须在重定向前完成 Save
type SessionRepo interface {
	Load(ctx context.Context, sid string) (*model.SessionState, error)
	Save(ctx context.Context, sid string, state *model.SessionState, ttl time.Duration) error
	Destroy(ctx context.Context, sid string) error
}

type sessionRepo struct {
	rdb *redis.Client
	l   *zap.Logger
}

func NewSessionRepo(data *Data, logger *zap.Logger) SessionRepo {
	return &sessionRepo{
		rdb: data.rdb,
		l:   logger,
	}
}

func sessionKey(sid string) string {
	return fmt.Sprintf("session:%s", sid)
}

func (r *sessionRepo) Load(ctx context.Context, sid string) (*model.SessionState, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &model.NotFoundError{Resource: "session"}
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	state := &model.SessionState{}
	if err := json.Unmarshal(raw, state); err != nil {
		// 损坏的会话按不存在处理, 用户重新开始流程
		r.l.Warn("Dropping corrupted session payload", zap.String("sid", sid), zap.Error(err))
		return nil, &model.NotFoundError{Resource: "session"}
	}
	return state, nil
}

func (r *sessionRepo) Save(ctx context.Context, sid string, state *model.SessionState, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(sid), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *sessionRepo) Destroy(ctx context.Context, sid string) error {
	if err := r.rdb.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
