package protocol

import (
	"bytes"
	"errors"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"
)

var varIntCases = []struct {
	value int32
	wire  []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{127, []byte{0x7F}},
	{128, []byte{0x80, 0x01}},
	{255, []byte{0xFF, 0x01}},
	{731, []byte{0xDB, 0x05}},
	{765, []byte{0xFD, 0x05}},
	{25565, []byte{0xDD, 0xC7, 0x01}},
	{2097151, []byte{0xFF, 0xFF, 0x7F}},
	{2147483647, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
	{-1, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	{-2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
}

func TestDecodeVarInt(t *testing.T) {
	for _, tt := range varIntCases {
		// 尾部多余字节不应被消耗
		buf := append(append([]byte{}, tt.wire...), 0xAA)
		got, n, err := DecodeVarInt(buf)
		if err != nil {
			t.Errorf("DecodeVarInt(%x) error = %v", tt.wire, err)
			continue
		}
		if got != tt.value || n != len(tt.wire) {
			t.Errorf("DecodeVarInt(%x) = (%d, %d), want (%d, %d)", tt.wire, got, n, tt.value, len(tt.wire))
		}
	}
}

func TestDecodeVarIntErrors(t *testing.T) {
	tests := []struct {
		name  string
		buf   []byte
		err   error
		wantN int
	}{
		{"empty", nil, ErrIncomplete, 0},
		{"continuation without next byte", []byte{0x80}, ErrIncomplete, 1},
		{"four continuation bytes", []byte{0xFF, 0xFF, 0xFF, 0xFF}, ErrIncomplete, 4},
		{"six bytes", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, ErrTooLarge, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, n, err := DecodeVarInt(tt.buf)
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			if n != tt.wantN {
				t.Errorf("n = %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestAppendVarInt(t *testing.T) {
	for _, tt := range varIntCases {
		got := AppendVarInt(nil, tt.value)
		if !bytes.Equal(got, tt.wire) {
			t.Errorf("AppendVarInt(%d) = %x, want %x", tt.value, got, tt.wire)
		}
		if size := VarIntSize(tt.value); size != len(tt.wire) {
			t.Errorf("VarIntSize(%d) = %d, want %d", tt.value, size, len(tt.wire))
		}

		// 与 go-mc 的编码保持一致
		var ref bytes.Buffer
		if _, err := pk.VarInt(tt.value).WriteTo(&ref); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, ref.Bytes()) {
			t.Errorf("AppendVarInt(%d) = %x, go-mc = %x", tt.value, got, ref.Bytes())
		}
	}
}

func TestReadVarInt(t *testing.T) {
	for _, tt := range varIntCases {
		got, err := ReadVarInt(bytes.NewReader(tt.wire))
		if err != nil || got != tt.value {
			t.Errorf("ReadVarInt(%x) = (%d, %v), want %d", tt.wire, got, err, tt.value)
		}
	}

	if _, err := ReadVarInt(bytes.NewReader([]byte{0x80, 0x80})); !errors.Is(err, ErrIncomplete) {
		t.Errorf("截断的 VarInt error = %v, want ErrIncomplete", err)
	}
	if _, err := ReadVarInt(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})); !errors.Is(err, ErrTooLarge) {
		t.Errorf("超长 VarInt error = %v, want ErrTooLarge", err)
	}
}

func TestDecodeString(t *testing.T) {
	wire := AppendString(nil, "localhost")
	s, n, err := DecodeString(append(wire, 0x63, 0xDD))
	if err != nil || s != "localhost" || n != 10 {
		t.Fatalf("DecodeString() = (%q, %d, %v), want (localhost, 10, nil)", s, n, err)
	}

	s, n, err = DecodeString([]byte{0x00})
	if err != nil || s != "" || n != 1 {
		t.Errorf("空字符串 = (%q, %d, %v)", s, n, err)
	}

	// 多字节 UTF-8 按字节计长
	wire = AppendString(nil, "§c")
	if wire[0] != 3 {
		t.Errorf("§c 的长度前缀 = %d, want 3", wire[0])
	}
	if s, _, err := DecodeString(wire); err != nil || s != "§c" {
		t.Errorf("DecodeString(§c) = (%q, %v)", s, err)
	}
}

func TestDecodeStringErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		err  error
	}{
		{"missing length", nil, ErrInvalidVarInt},
		{"length beyond buffer", []byte{0x05, 'a', 'b'}, ErrBufferUnderrun},
		{"negative length", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F, 'a'}, ErrBufferUnderrun},
		{"invalid utf-8", []byte{0x02, 0xFF, 0xFE}, ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeString(tt.buf); !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
		})
	}

	// 长度前缀错误同时保留底层原因
	if _, _, err := DecodeString([]byte{0x80}); !errors.Is(err, ErrIncomplete) {
		t.Errorf("error = %v, want wrapped ErrIncomplete", err)
	}
}
