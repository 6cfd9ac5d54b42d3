package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"infopics/internal/biz/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// UserRepo 权威账号记录的数据访问接口
type UserRepo interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Create(ctx context.Context, user *model.User) (*model.User, error)
	AttachGoogleID(ctx context.Context, userID, googleID, profilePic string) error
}

type userRepo struct {
	pool *pgxpool.Pool
	l    *zap.Logger
}

func NewUserRepo(data *Data, logger *zap.Logger) UserRepo {
	return &userRepo{
		pool: data.db,
		l:    logger,
	}
}

const userColumns = `id, username, email, password_hash, COALESCE(google_id, ''), profile_pic, verified, created_at, updated_at`

func (r *userRepo) scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.GoogleID,
		&u.ProfilePic, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	// 邮箱不要求唯一时可能命中多条, 取最早注册的一条
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, googleID))
}

// Create 写入新账号
// 唯一约束冲突在写入时由数据库裁决并转译为 ConflictError,
// 预检查后直接信任结果会在并发注册下出错
func (r *userRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.ProfilePic == "" {
		user.ProfilePic = model.DefaultAvatar
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, google_id, profile_pic, verified)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Username, strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash, user.GoogleID, user.ProfilePic, user.Verified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if conflict := translateUniqueViolation(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// AttachGoogleID 把外部身份绑定到已有账号
// WHERE 条件保证不会覆盖已绑定的其它外部身份
func (r *userRepo) AttachGoogleID(ctx context.Context, userID, googleID, profilePic string) error {
	query := `
		UPDATE users
		SET google_id = $2,
		    profile_pic = CASE WHEN $3 <> '' THEN $3 ELSE profile_pic END,
		    updated_at = now()
		WHERE id = $1 AND (google_id IS NULL OR google_id = $2)
	`
	tag, err := r.pool.Exec(ctx, query, userID, googleID, profilePic)
	if err != nil {
		if conflict := translateUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// 账号不存在, 或已绑定另一个外部身份
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return &model.NotFoundError{Resource: "user"}
		}
		return &model.ConflictError{Field: "google_id"}
	}
	return nil
}

// translateUniqueViolation 把 Postgres 唯一约束违反 (23505) 按约束名转译为领域错误
func translateUniqueViolation(err error) *model.ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return &model.ConflictError{Field: "username"}
	case strings.Contains(pgErr.ConstraintName, "email"):
		return &model.ConflictError{Field: "email"}
	case strings.Contains(pgErr.ConstraintName, "google_id"):
		return &model.ConflictError{Field: "google_id"}
	default:
		return &model.ConflictError{Field: pgErr.ConstraintName}
	}
}
