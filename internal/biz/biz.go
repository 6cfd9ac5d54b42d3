package biz

import "go.uber.org/fx"

var Module = fx.Module("biz",
	fx.Provide(NewOnboardingUseCase),
	fx.Provide(NewIdentityResolver),
	fx.Provide(NewCodeVerifier),
	fx.Provide(NewCheckUseCase),
)
