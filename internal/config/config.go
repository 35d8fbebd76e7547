package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// 网络引擎
const (
	EngineNetpoll = "netpoll"
	EngineStd     = "std"
)

// Config 主配置结构
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Favicon       string              `yaml:"favicon"`
	MOTD          MOTDConfig          `yaml:"motd"`
	Version       VersionConfig       `yaml:"version"`
	Disconnect    DisconnectConfig    `yaml:"disconnect"`
	Logging       LoggingConfig       `yaml:"logging"`
	AccessLogging AccessLoggingConfig `yaml:"access_logging"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Security      SecurityConfig      `yaml:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Engine         string        `yaml:"engine"` // netpoll, std
	MaxConnections int           `yaml:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	NumLoops       int           `yaml:"num_loops"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	IPLimit         int           `yaml:"ip_limit"`
	GlobalLimit     int           `yaml:"global_limit"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// MOTDConfig 服务器列表描述
type MOTDConfig struct {
	Text      string `yaml:"text"`
	Legacy    string `yaml:"legacy"`    // 1.6 及更早客户端
	Component any    `yaml:"component"` // 1.16+ 客户端，JSON 文本组件
}

// VersionConfig 版本显示配置
type VersionConfig struct {
	Text  string   `yaml:"text"`
	Hover []string `yaml:"hover"` // 鼠标悬停在人数上时显示的行
}

// DisconnectConfig 登录时的断开消息
type DisconnectConfig struct {
	Text      string `yaml:"text"`
	Component any    `yaml:"component"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// AccessLoggingConfig 访问事件日志配置
type AccessLoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
	Format     string `yaml:"format"` // json, csv
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EnableIPBlacklist bool          `yaml:"enable_ip_blacklist"`
	IPBlacklist       []string      `yaml:"ip_blacklist"`
	MaxPacketSize     int           `yaml:"max_packet_size"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{
		Favicon: "icon.png",
		MOTD: MOTDConfig{
			Text:   "§cServer is currently unreachable\n§8› §7§ogithub.com/anweisen/§lJustMotd",
			Legacy: "§cpowered by JustMotd",
		},
		Version: VersionConfig{
			Text:  "§4§l✗ §cOffline ",
			Hover: []string{" ", "  §8× §canweisen.net §8×  ", "  "},
		},
		Disconnect: DisconnectConfig{
			Text: "§cThis server is currently undergoing maintenance",
		},
	}
	setDefaults(cfg)
	return cfg
}

// Load 从文件加载配置，文件不存在时写入并返回默认配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("写入默认配置失败: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败，删除后可重新生成: %w", err)
	}

	// 设置默认值
	setDefaults(&config)

	// 验证配置
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// Save 将配置写入文件
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	return os.WriteFile(configPath, data, 0644)
}

// setDefaults 设置默认值
func setDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 25565
	}
	if config.Server.Engine == "" {
		config.Server.Engine = EngineNetpoll
	}
	if config.Server.MaxConnections == 0 {
		config.Server.MaxConnections = 10000
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = time.Minute
	}

	if config.RateLimit.IPLimit == 0 {
		config.RateLimit.IPLimit = 5
	}
	if config.RateLimit.GlobalLimit == 0 {
		config.RateLimit.GlobalLimit = 100
	}
	if config.RateLimit.CleanupInterval == 0 {
		config.RateLimit.CleanupInterval = time.Minute
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	if config.AccessLogging.Format == "" {
		config.AccessLogging.Format = "json"
	}
	if config.AccessLogging.FilePath == "" {
		config.AccessLogging.FilePath = "logs/access.log"
	}

	if config.Monitoring.ReportInterval == 0 {
		config.Monitoring.ReportInterval = 5 * time.Minute
	}

	if config.Security.MaxPacketSize == 0 {
		config.Security.MaxPacketSize = 1024
	}
	if config.Security.ConnectionTimeout == 0 {
		config.Security.ConnectionTimeout = 10 * time.Second
	}
}

// validate 验证配置
func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("无效的端口号: %d", config.Server.Port)
	}

	if config.Server.Engine != EngineNetpoll && config.Server.Engine != EngineStd {
		return fmt.Errorf("不支持的网络引擎: %s", config.Server.Engine)
	}

	if config.Server.MaxConnections < 1 {
		return fmt.Errorf("最大连接数必须大于 0")
	}

	if config.RateLimit.IPLimit < 1 {
		return fmt.Errorf("IP 限流值必须大于 0")
	}

	if config.RateLimit.GlobalLimit < 1 {
		return fmt.Errorf("全局限流值必须大于 0")
	}

	if config.Security.MaxPacketSize < 1 {
		return fmt.Errorf("最大数据包大小必须大于 0")
	}

	if _, err := ComponentJSON(config.MOTD.Component); err != nil {
		return fmt.Errorf("motd.component 无效: %w", err)
	}

	if _, err := ComponentJSON(config.Disconnect.Component); err != nil {
		return fmt.Errorf("disconnect.component 无效: %w", err)
	}

	return nil
}

// ComponentJSON 将配置中的文本组件转为 JSON 字符串，未配置时返回空字符串。
// 组件既可以写成 YAML 结构，也可以写成一段 JSON 字符串。
func ComponentJSON(component any) (string, error) {
	switch v := component.(type) {
	case nil:
		return "", nil
	case string:
		if !sonic.Valid([]byte(v)) {
			return "", fmt.Errorf("不是合法的 JSON: %q", v)
		}
		return v, nil
	default:
		data, err := sonic.MarshalString(v)
		if err != nil {
			return "", fmt.Errorf("序列化组件失败: %w", err)
		}
		return data, nil
	}
}

// GetAddress 获取监听地址
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
