package service

import (
	"encoding/json"
	"net/http"

	"infopics/internal/biz/model"

	"go.uber.org/zap"
)

// CheckService 健康检查端点, Consul 的 HTTP check 也打到这里
type CheckService struct {
	uc model.CheckUseCase
	l  *zap.Logger
}

func NewCheckService(uc model.CheckUseCase, logger *zap.Logger) *CheckService {
	return &CheckService{
		uc: uc,
		l:  logger,
	}
}

func (c *CheckService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", c.Ready)
}

func (c *CheckService) Ready(w http.ResponseWriter, r *http.Request) {
	reply, err := c.uc.Ready(r.Context(), model.HealthCheckReq{})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		c.l.Warn("Health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  reply.Status,
		"details": reply.Details,
	})
}
