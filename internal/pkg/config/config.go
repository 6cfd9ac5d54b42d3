package config

import (
	"fmt"
	"os"

	"infopics/internal/conf"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module 提供 Fx 模块
var Module = fx.Module("config",
	fx.Provide(
		// 提供配置加载函数
		func() (*conf.Bootstrap, error) {
			// 从环境变量获取配置路径, 如果没有设置则使用默认路径
			configPath := getConfigPath()

			c := Init(configPath)
			if c == nil {
				return nil, fmt.Errorf("load configuration from %s failed", configPath)
			}

			fmt.Printf("Configuration loaded successfully from: %s\n", configPath)
			return c, nil
		},
	),
)

// Init 初始化配置加载, 仅从本地文件读取
func Init(configPath string) *conf.Bootstrap {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	localConf := &conf.Bootstrap{}

	// 从本地文件读取配置
	if err := v.ReadInConfig(); err != nil {
		// 使用标准输出而不是logger, 因为logger可能还没有初始化
		fmt.Printf("Warning: Error reading config file %s: %v\n", configPath, err)
		return nil
	}

	// 获取 Viper 的所有配置为一个 map
	m := v.AllSettings()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		// 允许将 snake_case 键与 CamelCase 字段匹配
		TagName: "json",
		Result:  localConf,
	})
	if err != nil {
		fmt.Printf("Warning: Failed to create decoder: %v\n", err)
		return nil
	}

	if err := decoder.Decode(m); err != nil {
		fmt.Printf("Warning: Unable to decode config map into struct: %v\n", err)
		return nil
	}

	return localConf
}

// getConfigPath 从环境变量获取配置路径
func getConfigPath() string {
	// 优先使用环境变量 CONFIG_PATH
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// 在Docker容器中, 配置文件位于/app/configs/config.yaml
	// 在开发环境中, 配置文件位于configs/config.yaml
	if isRunningInContainer() {
		return "/app/configs/config.yaml"
	}

	return "configs/config.yaml"
}

// isRunningInContainer 检查是否在容器中运行
func isRunningInContainer() bool {
	// 1. 检查/.dockerenv文件是否存在
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	// 2. 检查/proc/1/cgroup文件内容
	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		if contains(string(cgroup), "docker") || contains(string(cgroup), "kubepods") {
			return true
		}
	}

	// 3. 检查容器相关的环境变量
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" || os.Getenv("CONTAINER") != "" {
		return true
	}

	return false
}

// contains 检查字符串是否包含子字符串
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && (s[0:len(substr)] == substr || contains(s[1:], substr)))
}

// ValidateConfig 验证配置的完整性
func ValidateConfig(c *conf.Bootstrap) error {
	if c == nil {
		return fmt.Errorf("configuration is nil")
	}

	// 验证服务器配置
	if c.Server == nil || c.Server.Http == nil {
		return fmt.Errorf("server configuration is required")
	}

	// 验证数据库配置
	if c.Data == nil || c.Data.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	// 验证 Redis 配置, 会话状态和闪存消息依赖它
	if c.Data.Redis == nil {
		return fmt.Errorf("redis configuration is required")
	}

	// 验证 Google OAuth 配置
	if c.Oauth == nil || c.Oauth.ClientId == "" || c.Oauth.ClientSecret == "" {
		return fmt.Errorf("oauth configuration is required")
	}

	// 验证邮件配置
	if c.Mail == nil || c.Mail.Host == "" || c.Mail.From == "" {
		return fmt.Errorf("mail configuration is required")
	}

	return nil
}
