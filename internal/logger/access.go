package logger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/natefinch/lumberjack.v2"

	"placeholder-mc-server/internal/config"
)

// 访问事件类型
const (
	EventHandshake         = "handshake"
	EventLegacyPing        = "legacy_ping"
	EventProtocolViolation = "protocol_violation"
	EventRateLimited       = "rate_limited"
)

// AccessEvent 访问事件结构
type AccessEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	ClientIP        string    `json:"client_ip"`
	EventType       string    `json:"event_type"`
	ProtocolVersion int32     `json:"protocol_version,omitempty"`
	ServerAddress   string    `json:"server_address,omitempty"`
	ServerPort      uint16    `json:"server_port,omitempty"`
	NextState       int32     `json:"next_state,omitempty"` // 1=status, 2=login
	LegacyKind      string    `json:"legacy_kind,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// AccessLogger 访问事件日志记录器
type AccessLogger struct {
	config    *config.AccessLoggingConfig
	writer    io.Writer
	csvWriter *csv.Writer
	mutex     sync.Mutex
	enabled   bool
}

// NewAccessLogger 创建访问事件日志记录器
func NewAccessLogger(cfg *config.AccessLoggingConfig) (*AccessLogger, error) {
	if !cfg.Enabled {
		return &AccessLogger{enabled: false}, nil
	}

	// 确保日志目录存在
	logDir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("创建访问日志目录失败: %w", err)
	}

	// 配置日志轮转
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return newAccessLogger(cfg, fileWriter)
}

func newAccessLogger(cfg *config.AccessLoggingConfig, w io.Writer) (*AccessLogger, error) {
	logger := &AccessLogger{
		config:  cfg,
		writer:  w,
		enabled: true,
	}

	// 如果是CSV格式，初始化CSV写入器并写入表头
	if strings.ToLower(cfg.Format) == "csv" {
		logger.csvWriter = csv.NewWriter(w)
		if err := logger.writeCSVHeader(); err != nil {
			return nil, fmt.Errorf("写入CSV表头失败: %w", err)
		}
	}

	return logger, nil
}

// writeCSVHeader 写入CSV表头
func (al *AccessLogger) writeCSVHeader() error {
	headers := []string{
		"timestamp", "client_ip", "event_type",
		"protocol_version", "server_address", "server_port", "next_state",
		"legacy_kind", "error_message",
	}
	if err := al.csvWriter.Write(headers); err != nil {
		return err
	}
	al.csvWriter.Flush()
	return al.csvWriter.Error()
}

// LogEvent 记录访问事件
func (al *AccessLogger) LogEvent(event *AccessEvent) error {
	if !al.enabled {
		return nil
	}

	al.mutex.Lock()
	defer al.mutex.Unlock()

	// 设置时间戳
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if al.csvWriter != nil {
		return al.writeCSV(event)
	}
	return al.writeJSON(event)
}

// writeJSON 写入JSON格式
func (al *AccessLogger) writeJSON(event *AccessEvent) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化访问事件失败: %w", err)
	}

	_, err = al.writer.Write(append(data, '\n'))
	return err
}

// writeCSV 写入CSV格式
func (al *AccessLogger) writeCSV(event *AccessEvent) error {
	record := []string{
		event.Timestamp.Format(time.RFC3339),
		event.ClientIP,
		event.EventType,
		strconv.Itoa(int(event.ProtocolVersion)),
		event.ServerAddress,
		strconv.Itoa(int(event.ServerPort)),
		strconv.Itoa(int(event.NextState)),
		event.LegacyKind,
		event.ErrorMessage,
	}

	if err := al.csvWriter.Write(record); err != nil {
		return err
	}

	// 立即刷新到文件
	al.csvWriter.Flush()
	return al.csvWriter.Error()
}

// LogHandshake 记录握手包事件
func (al *AccessLogger) LogHandshake(clientIP string, protocolVer int32, serverAddr string, serverPort uint16, nextState int32) error {
	return al.LogEvent(&AccessEvent{
		ClientIP:        clientIP,
		EventType:       EventHandshake,
		ProtocolVersion: protocolVer,
		ServerAddress:   serverAddr,
		ServerPort:      serverPort,
		NextState:       nextState,
	})
}

// LogLegacyPing 记录旧版 ping 事件
func (al *AccessLogger) LogLegacyPing(clientIP, kind string) error {
	return al.LogEvent(&AccessEvent{
		ClientIP:   clientIP,
		EventType:  EventLegacyPing,
		LegacyKind: kind,
	})
}

// LogProtocolViolation 记录协议违规事件
func (al *AccessLogger) LogProtocolViolation(clientIP, errorMsg string) error {
	return al.LogEvent(&AccessEvent{
		ClientIP:     clientIP,
		EventType:    EventProtocolViolation,
		ErrorMessage: errorMsg,
	})
}

// LogRateLimited 记录被限流的连接
func (al *AccessLogger) LogRateLimited(clientIP string) error {
	return al.LogEvent(&AccessEvent{
		ClientIP:  clientIP,
		EventType: EventRateLimited,
	})
}

// Close 关闭日志记录器
func (al *AccessLogger) Close() error {
	if !al.enabled {
		return nil
	}

	al.mutex.Lock()
	defer al.mutex.Unlock()

	if al.csvWriter != nil {
		al.csvWriter.Flush()
	}

	if closer, ok := al.writer.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// IsEnabled 检查是否启用
func (al *AccessLogger) IsEnabled() bool {
	return al.enabled
}
