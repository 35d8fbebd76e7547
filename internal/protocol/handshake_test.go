package protocol

import (
	"bytes"
	"errors"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"
)

// handshakeBody 用 go-mc 构造握手包体（不含长度前缀）
func handshakeBody(t *testing.T, proto int32, host string, port uint16, next int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range []pk.FieldEncoder{
		pk.VarInt(HandshakePacketID),
		pk.VarInt(proto),
		pk.String(host),
		pk.UnsignedShort(port),
		pk.VarInt(next),
	} {
		if _, err := f.WriteTo(&buf); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestDecodeHandshake(t *testing.T) {
	tests := []struct {
		name  string
		proto int32
		host  string
		port  uint16
		next  int32
		want  NextState
	}{
		{"status 1.20.4", 765, "localhost", 25565, 1, StateStatus},
		{"login 1.8", 47, "mc.example.net", 25565, 2, StateLogin},
		{"negative protocol", -1, "", 0, 1, StateStatus},
		{"snapshot protocol", 0x40000000 | 100, "a", 65535, 2, StateLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, err := DecodeHandshake(handshakeBody(t, tt.proto, tt.host, tt.port, tt.next))
			if err != nil {
				t.Fatalf("DecodeHandshake() error = %v", err)
			}
			want := Handshake{
				PacketID:        HandshakePacketID,
				ProtocolVersion: tt.proto,
				Hostname:        tt.host,
				Port:            tt.port,
				NextState:       tt.want,
			}
			if *hs != want {
				t.Errorf("DecodeHandshake() = %+v, want %+v", *hs, want)
			}
		})
	}
}

func TestDecodeHandshakeLiteral(t *testing.T) {
	body := []byte{0x00, 0xFD, 0x05, 0x09}
	body = append(body, "localhost"...)
	body = append(body, 0x63, 0xDD, 0x01)

	hs, err := DecodeHandshake(body)
	if err != nil {
		t.Fatalf("DecodeHandshake() error = %v", err)
	}
	if hs.ProtocolVersion != 765 || hs.Hostname != "localhost" || hs.Port != 25565 || hs.NextState != StateStatus {
		t.Errorf("DecodeHandshake() = %+v", *hs)
	}
}

func TestDecodeHandshakeErrors(t *testing.T) {
	valid := func(t *testing.T) []byte { return handshakeBody(t, 765, "localhost", 25565, 1) }

	tests := []struct {
		name  string
		body  func(t *testing.T) []byte
		field string
		err   error
	}{
		{
			name:  "empty",
			body:  func(*testing.T) []byte { return nil },
			field: "packet_id",
			err:   ErrIncomplete,
		},
		{
			name:  "truncated protocol",
			body:  func(*testing.T) []byte { return []byte{0x00, 0xFD} },
			field: "protocol_version",
			err:   ErrIncomplete,
		},
		{
			name:  "hostname too long",
			body:  func(*testing.T) []byte { return []byte{0x00, 0x01, 0x20, 'a'} },
			field: "hostname",
			err:   ErrBufferUnderrun,
		},
		{
			name: "hostname not utf-8",
			body: func(*testing.T) []byte {
				return []byte{0x00, 0x01, 0x02, 0xC3, 0x28, 0x63, 0xDD, 0x01}
			},
			field: "hostname",
			err:   ErrInvalidUTF8,
		},
		{
			name:  "one port byte",
			body:  func(t *testing.T) []byte { b := valid(t); return b[:len(b)-2] },
			field: "port",
			err:   ErrBufferUnderrun,
		},
		{
			name:  "missing next state",
			body:  func(t *testing.T) []byte { b := valid(t); return b[:len(b)-1] },
			field: "next_state",
			err:   ErrIncomplete,
		},
		{
			name:  "unknown next state",
			body:  func(t *testing.T) []byte { return handshakeBody(t, 765, "localhost", 25565, 3) },
			field: "next_state",
			err:   ErrUnknownNextState,
		},
		{
			name:  "transfer next state",
			body:  func(t *testing.T) []byte { return handshakeBody(t, 766, "localhost", 25565, 0) },
			field: "next_state",
			err:   ErrUnknownNextState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, err := DecodeHandshake(tt.body(t))
			if hs != nil {
				t.Errorf("失败时不应返回握手包: %+v", *hs)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Field != tt.field {
				t.Errorf("error = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestParseNextState(t *testing.T) {
	for _, v := range []int32{1, 2} {
		if s, err := ParseNextState(v); err != nil || int32(s) != v {
			t.Errorf("ParseNextState(%d) = (%v, %v)", v, s, err)
		}
	}
	for _, v := range []int32{-1, 0, 3, 255} {
		if _, err := ParseNextState(v); !errors.Is(err, ErrUnknownNextState) {
			t.Errorf("ParseNextState(%d) error = %v, want ErrUnknownNextState", v, err)
		}
	}

	if StateStatus.String() != "status" || StateLogin.String() != "login" {
		t.Error("NextState.String() 不正确")
	}
}
