package model

import (
	"errors"
	"fmt"
)

// ValidationError 输入不合法, 用户可自行修正
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError 唯一约束冲突 (用户名/邮箱/外部身份), 提示用户换一个
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

// NotFoundError 引用的记录不存在或已过期, 用户需要重新开始流程
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// UpstreamError 外部协作方失败 (邮件/身份提供方), 记录日志并提示重试
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AuthError 凭证不匹配
// 消息保持泛化, 不暴露用户名和密码哪个错了, 避免账号枚举
type AuthError struct{}

func (e *AuthError) Error() string {
	return "invalid credentials"
}

// IsValidation 判断是否为输入校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict 判断是否为唯一约束冲突
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound 判断是否为记录缺失
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsUpstream 判断是否为外部协作方失败
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsAuth 判断是否为凭证错误
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
