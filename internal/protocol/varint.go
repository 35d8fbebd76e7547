package protocol

import (
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	segmentBits = 0x7F
	continueBit = 0x80

	// MaxVarIntLen VarInt 最多占用的字节数
	MaxVarIntLen = 5
)

// DecodeVarInt 从 buf 头部解码一个 VarInt，返回值与消耗的字节数。
// 第 5 个字节的高位会溢出到符号位，这与线上格式的 32 位回绕一致。
func DecodeVarInt(buf []byte) (value int32, n int, err error) {
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(buf) {
			return 0, i, ErrIncomplete
		}
		b := buf[i]
		value |= int32(b&segmentBits) << (7 * i)
		if b&continueBit == 0 {
			return value, i + 1, nil
		}
	}
	return 0, MaxVarIntLen, ErrTooLarge
}

// ReadVarInt 从字节流逐字节读取一个 VarInt。任何读取失败都视为 ErrIncomplete。
func ReadVarInt(r io.ByteReader) (int32, error) {
	var value int32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, ErrIncomplete
		}
		value |= int32(b&segmentBits) << (7 * i)
		if b&continueBit == 0 {
			return value, nil
		}
	}
	return 0, ErrTooLarge
}

// AppendVarInt 将 v 编码后追加到 dst。负数按无符号 32 位编码，固定 5 字节。
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= continueBit {
		dst = append(dst, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarIntSize 返回 v 编码后的字节数
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= continueBit {
		u >>= 7
		n++
	}
	return n
}

// DecodeString 从 buf 头部解码一个 VarString，返回字符串与消耗的字节数。
// 分配的内存不超过声明的长度。
func DecodeString(buf []byte) (s string, n int, err error) {
	length, n, err := DecodeVarInt(buf)
	if err != nil {
		return "", n, fmt.Errorf("%w: %w", ErrInvalidVarInt, err)
	}

	rest := buf[n:]
	if length < 0 || int64(length) > int64(len(rest)) {
		return "", n, fmt.Errorf("%w: string length %d, %d bytes left", ErrBufferUnderrun, length, len(rest))
	}

	raw := rest[:length]
	if !utf8.Valid(raw) {
		return "", n, ErrInvalidUTF8
	}

	return string(raw), n + int(length), nil
}

// AppendString 将 s 以 VarString 形式追加到 dst
func AppendString(dst []byte, s string) []byte {
	dst = AppendVarInt(dst, int32(len(s)))
	return append(dst, s...)
}
