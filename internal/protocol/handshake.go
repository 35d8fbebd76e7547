package protocol

import (
	"encoding/binary"
	"fmt"
)

// HandshakePacketID 握手包 ID
const HandshakePacketID = 0x00

// NextState 握手后客户端期望进入的状态
type NextState int32

const (
	StateStatus NextState = 1
	StateLogin  NextState = 2
)

// ParseNextState 将解码出的整数映射为 NextState，未知值返回 ErrUnknownNextState
func ParseNextState(v int32) (NextState, error) {
	switch NextState(v) {
	case StateStatus, StateLogin:
		return NextState(v), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownNextState, v)
	}
}

func (s NextState) String() string {
	switch s {
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Handshake 握手包
type Handshake struct {
	PacketID        int32
	ProtocolVersion int32
	Hostname        string
	Port            uint16
	NextState       NextState
}

// DecodeHandshake 解析已经按长度前缀切分好的握手包体。
// 任意字段失败即整体失败，返回的 *DecodeError 指明出错字段。
func DecodeHandshake(body []byte) (*Handshake, error) {
	r := bodyReader{buf: body}
	var h Handshake
	var err error

	if h.PacketID, err = r.readVarInt(); err != nil {
		return nil, &DecodeError{Field: "packet_id", Err: err}
	}

	// 协议版本允许为负数（-1 等占位值）
	if h.ProtocolVersion, err = r.readVarInt(); err != nil {
		return nil, &DecodeError{Field: "protocol_version", Err: err}
	}

	if h.Hostname, err = r.readString(); err != nil {
		return nil, &DecodeError{Field: "hostname", Err: err}
	}

	if h.Port, err = r.readUint16(); err != nil {
		return nil, &DecodeError{Field: "port", Err: err}
	}

	state, err := r.readVarInt()
	if err != nil {
		return nil, &DecodeError{Field: "next_state", Err: err}
	}
	if h.NextState, err = ParseNextState(state); err != nil {
		return nil, &DecodeError{Field: "next_state", Err: err}
	}

	return &h, nil
}

// bodyReader 在包体上顺序读取字段
type bodyReader struct {
	buf []byte
}

func (r *bodyReader) readVarInt() (int32, error) {
	v, n, err := DecodeVarInt(r.buf)
	if err != nil {
		return 0, err
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *bodyReader) readString() (string, error) {
	s, n, err := DecodeString(r.buf)
	if err != nil {
		return "", err
	}
	r.buf = r.buf[n:]
	return s, nil
}

func (r *bodyReader) readUint16() (uint16, error) {
	if len(r.buf) < 2 {
		return 0, fmt.Errorf("%w: need 2 bytes, %d left", ErrBufferUnderrun, len(r.buf))
	}
	v := binary.BigEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v, nil
}
