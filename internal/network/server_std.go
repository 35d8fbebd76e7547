package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// stdEngine 基于标准库 net 的网络引擎，每个连接一个 goroutine
type stdEngine struct {
	server   *Server
	listener net.Listener
	wg       sync.WaitGroup
}

func newStdEngine(s *Server) (engine, error) {
	listener, err := net.Listen("tcp", s.config.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("创建监听器失败: %w", err)
	}
	return &stdEngine{server: s, listener: listener}, nil
}

func (e *stdEngine) serve() error {
	for {
		c, err := e.listener.Accept()
		if err != nil {
			if e.server.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				e.server.logger.Warn().Err(err).Msg("接受连接超时")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("接受连接失败: %w", err)
		}

		e.wg.Add(1)
		go e.handle(c)
	}
}

func (e *stdEngine) handle(c net.Conn) {
	defer e.wg.Done()

	if timeout := e.server.config.Security.ConnectionTimeout; timeout > 0 {
		c.SetDeadline(time.Now().Add(timeout))
	}

	conn, ok := e.server.admit(c.RemoteAddr(), NewBufferedStream(c))
	if !ok {
		c.Close()
		return
	}
	defer e.server.release(conn)

	e.server.serveConnection(e.server.ctx, conn)
}

func (e *stdEngine) shutdown(ctx context.Context) error {
	err := e.listener.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *stdEngine) addr() net.Addr {
	return e.listener.Addr()
}
