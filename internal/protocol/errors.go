package protocol

import (
	"errors"
	"fmt"
)

// 协议层错误。每个解码、组帧操作只返回以下错误之一（或包装它们），
// 调用方用 errors.Is 区分。
var (
	// ErrIncomplete 数据不足（连接提前关闭或缓冲区耗尽），端口扫描器很常见，静默丢弃即可
	ErrIncomplete = errors.New("incomplete data")
	// ErrTooLarge VarInt 超过 5 字节，或旧版响应超过 65535 个 UTF-16 单元
	ErrTooLarge = errors.New("value too large")
	// ErrInvalidVarInt VarString 的长度前缀解码失败
	ErrInvalidVarInt = errors.New("invalid varint")
	// ErrBufferUnderrun 声明的长度超过剩余字节
	ErrBufferUnderrun = errors.New("buffer underrun")
	// ErrInvalidUTF8 字符串不是合法的 UTF-8
	ErrInvalidUTF8 = errors.New("invalid utf-8")
	// ErrUnknownNextState 握手包声明的下一状态既不是 status 也不是 login
	ErrUnknownNextState = errors.New("unknown next state")
	// ErrInvalidLength 数据包长度不在 (0, max_packet_size] 范围内
	ErrInvalidLength = errors.New("invalid packet length")
	// ErrRateLimited 连接被限流器拒绝
	ErrRateLimited = errors.New("rate limited")
)

// DecodeError 握手包字段解码错误
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode handshake %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
