package log

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module 提供 Fx 模块
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger 创建全局 zap 日志器
// 控制台输出 JSON 结构化日志, 同时经 otelzap 桥接到 OTLP 日志管道
// otelzap 默认使用全局 LoggerProvider, 在 OTel SDK 初始化之前构造也是安全的
func NewLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		base.Core(),
		otelzap.NewCore("infopics"),
	)

	return zap.New(core, zap.AddCaller()), nil
}
