package network

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnectionHandler 连接处理器接口
type ConnectionHandler interface {
	HandleConnection(ctx context.Context, conn *Connection) error
}

// ConnectionState 连接状态
type ConnectionState int

const (
	StateStart ConnectionState = iota
	StatePeekedLegacy
	StatePeekedModern
	StateLegacyResponded
	StateModernDecoded
	StateResponded
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePeekedLegacy:
		return "peeked_legacy"
	case StatePeekedModern:
		return "peeked_modern"
	case StateLegacyResponded:
		return "legacy_responded"
	case StateModernDecoded:
		return "modern_decoded"
	case StateResponded:
		return "responded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream 连接字节流
type Stream interface {
	io.Reader
	io.ByteReader
	io.Writer

	// Peek 非消费式读取最多 n 个已到达的字节，只等待第一个字节
	Peek(n int) ([]byte, error)
	// Buffered 已到达但尚未读取的字节数
	Buffered() int
	// Discard 丢弃 n 个已到达的字节
	Discard(n int) (int, error)
	Flush() error
	Close() error
}

// Connection 连接包装器
type Connection struct {
	Stream
	ID        string
	RemoteIP  string
	StartTime time.Time
	Logger    zerolog.Logger
	State     ConnectionState
	stateMu   sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// NewConnection 创建连接包装器
func NewConnection(stream Stream, id, remoteIP string, logger zerolog.Logger) *Connection {
	return &Connection{
		Stream:    stream,
		ID:        id,
		RemoteIP:  remoteIP,
		StartTime: time.Now(),
		State:     StateStart,
		Logger: logger.With().
			Str("conn_id", id).
			Str("remote_ip", remoteIP).
			Logger(),
	}
}

// GetState 获取连接状态
func (c *Connection) GetState() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.State
}

// SetState 设置连接状态
func (c *Connection) SetState(state ConnectionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.State = state
}

// Close 关闭连接并进入 closed 状态，可重复调用
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Stream.Close()
		c.SetState(StateClosed)
	})
	return c.closeErr
}

// BufferedStream 基于 net.Conn 与 bufio 的 Stream 实现
type BufferedStream struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewBufferedStream 包装 net.Conn
func NewBufferedStream(conn net.Conn) *BufferedStream {
	return &BufferedStream{
		conn: conn,
		r:    bufio.NewReaderSize(conn, 1024),
		w:    bufio.NewWriterSize(conn, 4096),
	}
}

func (s *BufferedStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *BufferedStream) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

func (s *BufferedStream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Peek 缓冲区为空时阻塞等待第一个字节，之后只返回已缓冲的部分
func (s *BufferedStream) Peek(n int) ([]byte, error) {
	if s.r.Buffered() == 0 {
		if _, err := s.r.Peek(1); err != nil {
			return nil, err
		}
	}
	if buffered := s.r.Buffered(); n > buffered {
		n = buffered
	}
	return s.r.Peek(n)
}

func (s *BufferedStream) Buffered() int {
	return s.r.Buffered()
}

func (s *BufferedStream) Discard(n int) (int, error) {
	return s.r.Discard(n)
}

func (s *BufferedStream) Flush() error {
	return s.w.Flush()
}

func (s *BufferedStream) Close() error {
	return s.conn.Close()
}

// RemoteAddr 返回对端地址
func (s *BufferedStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
