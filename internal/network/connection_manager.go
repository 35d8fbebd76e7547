package network

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionManager 分片连接表
type ConnectionManager struct {
	// 使用分片锁减少锁竞争
	shards    []*connectionShard
	shardMask uint64
	count     atomic.Int64
}

// connectionShard 连接分片
type connectionShard struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager(shardCount int) *ConnectionManager {
	if shardCount <= 0 {
		shardCount = 16
	}

	// 分片数量取不小于 shardCount 的 2 的幂
	actualShardCount := 1
	for actualShardCount < shardCount {
		actualShardCount <<= 1
	}

	shards := make([]*connectionShard, actualShardCount)
	for i := range shards {
		shards[i] = &connectionShard{
			connections: make(map[string]*Connection),
		}
	}

	return &ConnectionManager{
		shards:    shards,
		shardMask: uint64(actualShardCount - 1),
	}
}

// getShard 获取连接对应的分片
func (cm *ConnectionManager) getShard(connID string) *connectionShard {
	h := fnv.New64a()
	h.Write([]byte(connID))
	return cm.shards[h.Sum64()&cm.shardMask]
}

// Store 存储连接
func (cm *ConnectionManager) Store(conn *Connection) {
	shard := cm.getShard(conn.ID)
	shard.mu.Lock()
	if _, exists := shard.connections[conn.ID]; !exists {
		cm.count.Add(1)
	}
	shard.connections[conn.ID] = conn
	shard.mu.Unlock()
}

// Load 加载连接
func (cm *ConnectionManager) Load(connID string) (*Connection, bool) {
	shard := cm.getShard(connID)
	shard.mu.RLock()
	conn, exists := shard.connections[connID]
	shard.mu.RUnlock()
	return conn, exists
}

// Delete 删除连接，返回连接是否存在
func (cm *ConnectionManager) Delete(connID string) bool {
	shard := cm.getShard(connID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.connections[connID]; !exists {
		return false
	}
	delete(shard.connections, connID)
	cm.count.Add(-1)
	return true
}

// Count 获取连接数量
func (cm *ConnectionManager) Count() int64 {
	return cm.count.Load()
}

// Range 遍历所有连接，fn 返回 false 时停止
func (cm *ConnectionManager) Range(fn func(conn *Connection) bool) {
	for _, shard := range cm.shards {
		shard.mu.RLock()
		conns := make([]*Connection, 0, len(shard.connections))
		for _, conn := range shard.connections {
			conns = append(conns, conn)
		}
		shard.mu.RUnlock()

		// 回调在锁外执行，允许其中关闭连接
		for _, conn := range conns {
			if !fn(conn) {
				return
			}
		}
	}
}

// CleanupExpired 关闭存活超过 maxAge 的连接，返回关闭数量。
// 连接由各自的关闭路径从表中移除。
func (cm *ConnectionManager) CleanupExpired(maxAge time.Duration) int {
	now := time.Now()
	var expired []*Connection

	cm.Range(func(conn *Connection) bool {
		if now.Sub(conn.StartTime) > maxAge {
			expired = append(expired, conn)
		}
		return true
	})

	for _, conn := range expired {
		conn.Close()
	}

	return len(expired)
}

// CloseAll 关闭所有连接
func (cm *ConnectionManager) CloseAll() {
	cm.Range(func(conn *Connection) bool {
		conn.Close()
		return true
	})
}
