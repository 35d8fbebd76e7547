//go:build !windows

package network

import (
	"context"
	"fmt"
	"net"

	"github.com/cloudwego/netpoll"
)

// connectionKey 在请求上下文中保存 *Connection
type connectionKey struct{}

// netpollEngine 基于 netpoll 事件循环的网络引擎 (Unix)
type netpollEngine struct {
	server    *Server
	listener  netpoll.Listener
	eventLoop netpoll.EventLoop
}

func newNetpollEngine(s *Server) (engine, error) {
	if n := s.config.Server.NumLoops; n > 0 {
		if err := netpoll.SetNumLoops(n); err != nil {
			return nil, fmt.Errorf("设置事件循环数量失败: %w", err)
		}
	}

	listener, err := netpoll.CreateListener("tcp", s.config.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("创建监听器失败: %w", err)
	}

	e := &netpollEngine{server: s, listener: listener}
	eventLoop, err := netpoll.NewEventLoop(
		e.onRequest,
		netpoll.WithOnPrepare(e.onPrepare),
		netpoll.WithReadTimeout(s.config.Server.ReadTimeout),
		netpoll.WithIdleTimeout(s.config.Server.IdleTimeout),
	)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("创建事件循环失败: %w", err)
	}
	e.eventLoop = eventLoop

	return e, nil
}

func (e *netpollEngine) serve() error {
	return e.eventLoop.Serve(e.listener)
}

func (e *netpollEngine) shutdown(ctx context.Context) error {
	return e.eventLoop.Shutdown(ctx)
}

func (e *netpollEngine) addr() net.Addr {
	return e.listener.Addr()
}

// onPrepare 连接准备回调
func (e *netpollEngine) onPrepare(connection netpoll.Connection) context.Context {
	conn, ok := e.server.admit(connection.RemoteAddr(), &pollStream{Connection: connection})
	if !ok {
		connection.Close()
		return e.server.ctx
	}

	connection.AddCloseCallback(func(netpoll.Connection) error {
		e.server.release(conn)
		return nil
	})

	return context.WithValue(e.server.ctx, connectionKey{}, conn)
}

// onRequest 首批数据到达时调用，处理完即关闭连接
func (e *netpollEngine) onRequest(ctx context.Context, connection netpoll.Connection) error {
	conn, ok := ctx.Value(connectionKey{}).(*Connection)
	if !ok {
		connection.Close()
		return nil
	}

	e.server.serveConnection(ctx, conn)
	return nil
}

// pollStream 以 netpoll 的零拷贝 Reader/Writer 实现 Stream
type pollStream struct {
	netpoll.Connection
}

func (p *pollStream) ReadByte() (byte, error) {
	return p.Reader().ReadByte()
}

// Peek 只返回已到达的字节，避免 netpoll.Reader.Peek 阻塞等待凑满 n 个字节
func (p *pollStream) Peek(n int) ([]byte, error) {
	r := p.Reader()
	if r.Len() == 0 {
		if _, err := r.Peek(1); err != nil {
			return nil, err
		}
	}
	if buffered := r.Len(); n > buffered {
		n = buffered
	}
	return r.Peek(n)
}

func (p *pollStream) Buffered() int {
	return p.Reader().Len()
}

func (p *pollStream) Discard(n int) (int, error) {
	if err := p.Reader().Skip(n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pollStream) Write(b []byte) (int, error) {
	return p.Writer().WriteBinary(b)
}

func (p *pollStream) Flush() error {
	return p.Writer().Flush()
}

func (p *pollStream) Close() error {
	p.Reader().Release()
	return p.Connection.Close()
}
