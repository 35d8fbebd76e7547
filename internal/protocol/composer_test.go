package protocol

import (
	"bytes"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"
)

func TestSupportsComponents(t *testing.T) {
	tests := []struct {
		proto int32
		want  bool
	}{
		{-1, false},
		{47, false},
		{734, false},
		{735, true},
		{765, true},
		{0x40000000 | 100, true},
	}
	for _, tt := range tests {
		if got := SupportsComponents(tt.proto); got != tt.want {
			t.Errorf("SupportsComponents(%d) = %v, want %v", tt.proto, got, tt.want)
		}
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		proto int32
		state NextState
		want  string
	}{
		{"status 1.8", 47, StateStatus, testResponses.Status},
		{"status 1.16 - 1", 734, StateStatus, testResponses.Status},
		{"status 1.16", 735, StateStatus, testResponses.StatusComponent},
		{"status 1.18.2", 758, StateStatus, testResponses.StatusComponent},
		{"status 1.20.4", 765, StateStatus, testResponses.StatusComponent},
		{"login 1.12", 340, StateLogin, testResponses.Disconnect},
		{"login 1.20.4", 765, StateLogin, testResponses.DisconnectComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testResponses.Select(tt.proto, tt.state); got != tt.want {
				t.Errorf("Select(%d, %v) = %q, want %q", tt.proto, tt.state, got, tt.want)
			}
		})
	}
}

func TestAppendPacket(t *testing.T) {
	got := AppendPacket(nil, StatusResponsePacketID, "{}")
	if want := []byte{0x04, 0x00, 0x02, '{', '}'}; !bytes.Equal(got, want) {
		t.Errorf("AppendPacket({}) = %x, want %x", got, want)
	}

	// 长度前缀跨越 VarInt 字节边界时与 go-mc 的组帧一致
	for _, payload := range []string{
		testResponses.StatusComponent,
		string(bytes.Repeat([]byte("x"), 125)),
		string(bytes.Repeat([]byte("§"), 300)),
	} {
		var ref bytes.Buffer
		p := pk.Marshal(StatusResponsePacketID, pk.String(payload))
		if err := p.Pack(&ref, -1); err != nil {
			t.Fatal(err)
		}
		if got := AppendPacket(nil, StatusResponsePacketID, payload); !bytes.Equal(got, ref.Bytes()) {
			t.Errorf("AppendPacket(len=%d) 与 go-mc 不一致:\n got %x\nwant %x", len(payload), got[:8], ref.Bytes()[:8])
		}
	}
}
