package protocol

// 共享常量
const (
	DefaultMaxPacketSize = 1024 // 握手包体默认上限
	MaxHostnameLen       = 255  // 握手中服务器地址的协议上限，仅用于日志截断
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ip string) bool
}
