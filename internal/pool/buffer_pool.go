package pool

import (
	"sync"
)

// BufferPool 定长读取缓冲区池，用于接收握手包体
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool 创建缓冲区池，size 为单个缓冲区的容量
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		},
		size: size,
	}
}

// Size 单个缓冲区容量
func (p *BufferPool) Size() int {
	return p.size
}

// Get 获取长度为 n 的缓冲区，n 超过池容量时直接分配
func (p *BufferPool) Get(n int) []byte {
	if n > p.size {
		return make([]byte, n)
	}
	buf := p.pool.Get().(*[]byte)
	return (*buf)[:n]
}

// Put 归还缓冲区，非本池分配的缓冲区直接丢弃
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	// 清零，避免上一个连接的数据残留
	clear(buf)
	p.pool.Put(&buf)
}

// ResponsePool 响应编码缓冲区池
type ResponsePool struct {
	pool   sync.Pool
	maxCap int
}

// NewResponsePool 创建响应池，容量超过 maxCap 的缓冲区不回收
func NewResponsePool(initialCap, maxCap int) *ResponsePool {
	return &ResponsePool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, initialCap)
				return &buf
			},
		},
		maxCap: maxCap,
	}
}

// Get 获取长度为 0 的响应缓冲区
func (p *ResponsePool) Get() []byte {
	buf := p.pool.Get().(*[]byte)
	return (*buf)[:0]
}

// Put 归还响应缓冲区
func (p *ResponsePool) Put(buf []byte) {
	if cap(buf) > p.maxCap {
		return
	}
	buf = buf[:0]
	p.pool.Put(&buf)
}
