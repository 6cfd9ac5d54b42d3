package service

import "go.uber.org/fx"

// Module 提供 Fx 模块
var Module = fx.Module("service",
	fx.Provide(
		NewSessionManager,
		NewAuthService,
		NewCheckService,
	),
)
