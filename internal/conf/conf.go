package conf

// Bootstrap 应用启动配置, 由 viper + mapstructure 从 configs/config.yaml 解码
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Auth     *Auth     `json:"auth"`
	Oauth    *Oauth    `json:"oauth"`
	Mail     *Mail     `json:"mail"`
	Registry *Registry `json:"registry"`
	Trace    *Trace    `json:"trace"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr string `json:"addr"`
	// BaseUrl 对外可达地址, 用于拼接 OAuth 回调等绝对链接
	BaseUrl string `json:"base_url"`
}

type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
}

type Database struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DbName   string `json:"db_name"`
	SslMode  string `json:"ssl_mode"`
	Timezone string `json:"timezone"`
}

type Redis struct {
	Host         string `json:"host"`
	Port         int32  `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Db           int32  `json:"db"`
	DialTimeout  int32  `json:"dial_timeout"`
	ReadTimeout  int32  `json:"read_timeout"`
	WriteTimeout int32  `json:"write_timeout"`
	PoolSize     int32  `json:"pool_size"`
	MinIdleConns int32  `json:"min_idle_conns"`
}

// Auth 注册/登录策略配置
type Auth struct {
	// StateSecret 签发 OAuth state JWT 的密钥, 为空时启动期自动生成
	StateSecret string `json:"state_secret"`
	// EnforceUniqueEmail 是否限制一个邮箱只能注册一个账号,
	// 关闭后同一个 Gmail 地址可以持有多个用户名
	EnforceUniqueEmail bool `json:"enforce_unique_email"`
	// AutoLinkByEmail 外部登录时是否按邮箱自动绑定已有账号,
	// 默认关闭: 邮箱声明可伪造, 静默绑定等于账号接管
	AutoLinkByEmail bool `json:"auto_link_by_email"`
	// SessionTtlHours 会话有效期, 0 时取 24 小时
	SessionTtlHours int32 `json:"session_ttl_hours"`
}

type Oauth struct {
	ClientId     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectUrl  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
}

type Mail struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type Registry struct {
	Enabled     bool   `json:"enabled"`
	Addr        string `json:"addr"`
	ServiceName string `json:"service_name"`
}

type Trace struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Insecure bool   `json:"insecure"`
}
