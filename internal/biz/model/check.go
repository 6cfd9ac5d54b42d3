package model

import "context"

type HealthCheckReq struct{}

type HealthCheckReply struct {
	Status  string
	Details map[string]string
}

// CheckUseCase 健康检查用例接口
type CheckUseCase interface {
	Ready(ctx context.Context, req HealthCheckReq) (HealthCheckReply, error)
}
