package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

const (
	// LegacyPingPrefix 旧版 ping 的首字节
	LegacyPingPrefix = 0xFE
	// LegacyKickPacketID 旧版踢出包 ID
	LegacyKickPacketID = 0xFF
	// LegacyPeekSize 判定旧版 ping 时最多预读的字节数
	LegacyPeekSize = 3

	// legacyProtocolVersion 1.4-1.6 响应中的占位协议版本
	legacyProtocolVersion = "127"
)

// LegacyPingKind 旧版 ping 格式
type LegacyPingKind int

const (
	// LegacyPingBeta18To13 Beta 1.8 至 1.3，只发送 0xFE
	LegacyPingBeta18To13 LegacyPingKind = iota
	// LegacyPingV14To16 1.4 至 1.6，发送 0xFE 0x01 ...
	LegacyPingV14To16
)

func (k LegacyPingKind) String() string {
	switch k {
	case LegacyPingBeta18To13:
		return "beta1.8-1.3"
	case LegacyPingV14To16:
		return "1.4-1.6"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// DetectLegacyPing 根据预读到的字节判断是否为旧版 ping
func DetectLegacyPing(peeked []byte) (LegacyPingKind, bool) {
	if len(peeked) == 0 || peeked[0] != LegacyPingPrefix {
		return 0, false
	}
	if len(peeked) >= 2 && peeked[1] == 0x01 {
		return LegacyPingV14To16, true
	}
	return LegacyPingBeta18To13, true
}

// LegacyResponse 构建旧版 ping 的响应文本
func LegacyResponse(kind LegacyPingKind, set *ResponseSet) string {
	if kind == LegacyPingV14To16 {
		return strings.Join([]string{
			"§1",
			legacyProtocolVersion,
			set.LegacyMOTD,
			set.LegacyVersion,
			"0",
			"0",
		}, "\x00")
	}
	return strings.Join([]string{set.LegacyMOTDPlain, "0", "0"}, "§")
}

// AppendLegacyKick 将 msg 编码为旧版踢出包追加到 dst：
// 0xFF、UTF-16 单元数（大端 u16）、UTF-16BE 文本。
func AppendLegacyKick(dst []byte, msg string) ([]byte, error) {
	encoded, err := utf16BE.NewEncoder().String(msg)
	if err != nil {
		return dst, fmt.Errorf("encode legacy kick: %w", err)
	}

	units := len(encoded) / 2
	if units > math.MaxUint16 {
		return dst, fmt.Errorf("%w: legacy kick has %d utf-16 units", ErrTooLarge, units)
	}

	dst = append(dst, LegacyKickPacketID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(units))
	return append(dst, encoded...), nil
}
