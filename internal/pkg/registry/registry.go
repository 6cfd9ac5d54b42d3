package registry

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"infopics/internal/conf"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module 提供 Fx 模块
var Module = fx.Module("registry",
	fx.Provide(NewConsulRegistry),
)

// ConsulRegistry 将 HTTP 服务注册到 Consul
type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	logger    *zap.Logger
}

func NewConsulRegistry(lc fx.Lifecycle, cfg *conf.Bootstrap, logger *zap.Logger) (*ConsulRegistry, error) {
	if cfg.Registry == nil || !cfg.Registry.Enabled {
		logger.Info("Consul registry disabled")
		return &ConsulRegistry{logger: logger}, nil
	}

	consulCfg := api.DefaultConfig()
	if cfg.Registry.Addr != "" {
		consulCfg.Address = cfg.Registry.Addr
	}

	client, err := api.NewClient(consulCfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client failed: %v", err)
	}

	serviceName := cfg.Registry.ServiceName
	if serviceName == "" {
		serviceName = "infopics"
	}

	host, portStr, err := net.SplitHostPort(cfg.Server.Http.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse server addr failed: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse server port failed: %v", err)
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	r := &ConsulRegistry{
		client:    client,
		serviceID: fmt.Sprintf("%s-%s-%d", serviceName, host, port),
		logger:    logger,
	}

	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/healthz", host, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Agent().ServiceRegister(registration); err != nil {
				return fmt.Errorf("register service to consul failed: %v", err)
			}
			logger.Info("Service registered to Consul",
				zap.String("service_id", r.serviceID),
				zap.String("addr", cfg.Server.Http.Addr),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Deregistering service from Consul...")
			return client.Agent().ServiceDeregister(r.serviceID)
		},
	})

	return r, nil
}
