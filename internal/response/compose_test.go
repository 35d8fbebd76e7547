package response

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"placeholder-mc-server/internal/config"
)

type statusView struct {
	EnforcesSecureChat bool           `json:"enforcesSecureChat"`
	PreviewsChat       bool           `json:"previewsChat"`
	Version            version        `json:"version"`
	Players            players        `json:"players"`
	Description        map[string]any `json:"description"`
	Favicon            string         `json:"favicon"`
}

func decodeStatus(t *testing.T, s string) statusView {
	t.Helper()
	var st statusView
	if err := sonic.UnmarshalString(s, &st); err != nil {
		t.Fatalf("status JSON 无法解析: %v\n%s", err, s)
	}
	return st
}

func TestComposeDefaults(t *testing.T) {
	cfg := config.Default()
	set, err := Compose(cfg, "")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	st := decodeStatus(t, set.Status)
	if st.Version.Protocol != -1 {
		t.Errorf("version.protocol = %d, want -1", st.Version.Protocol)
	}
	if st.Version.Name != cfg.Version.Text {
		t.Errorf("version.name = %q, want %q", st.Version.Name, cfg.Version.Text)
	}
	if st.Players.Max != 3 || st.Players.Online != 3 || len(st.Players.Sample) != 3 {
		t.Errorf("players = %+v, want max=online=len(sample)=3", st.Players)
	}
	for i, p := range st.Players.Sample {
		if p.Name != cfg.Version.Hover[i] {
			t.Errorf("sample[%d].name = %q, want %q", i, p.Name, cfg.Version.Hover[i])
		}
		if p.ID != "147e3454-1727-4807-9ba5-fe35b25ddbc1" {
			t.Errorf("sample[%d].id = %q", i, p.ID)
		}
	}
	if desc := st.Description; desc["text"] != cfg.MOTD.Text {
		t.Errorf("description.text = %v, want %q", desc["text"], cfg.MOTD.Text)
	}
	if st.EnforcesSecureChat || st.PreviewsChat {
		t.Error("enforcesSecureChat 与 previewsChat 应为 false")
	}
	if strings.Contains(set.Status, "favicon") {
		t.Error("没有图标时不应输出 favicon 字段")
	}

	// 未配置组件时回退到纯文本响应
	if set.StatusComponent != set.Status {
		t.Error("未配置 motd 组件时 StatusComponent 应与 Status 相同")
	}
	if set.DisconnectComponent != set.Disconnect {
		t.Error("未配置断开组件时 DisconnectComponent 应与 Disconnect 相同")
	}

	var disconnect map[string]any
	if err := sonic.UnmarshalString(set.Disconnect, &disconnect); err != nil {
		t.Fatalf("断开 JSON 无法解析: %v", err)
	}
	if disconnect["text"] != cfg.Disconnect.Text {
		t.Errorf("disconnect.text = %v, want %q", disconnect["text"], cfg.Disconnect.Text)
	}

	if set.LegacyMOTD != cfg.MOTD.Legacy || set.LegacyVersion != cfg.Version.Text {
		t.Errorf("legacy = (%q, %q)", set.LegacyMOTD, set.LegacyVersion)
	}
	if set.LegacyMOTDPlain != "powered by JustMotd" {
		t.Errorf("LegacyMOTDPlain = %q", set.LegacyMOTDPlain)
	}
}

func TestComposeComponents(t *testing.T) {
	cfg := config.Default()
	cfg.MOTD.Component = map[string]any{"text": "Hi", "color": "#ff8800"}
	cfg.Disconnect.Component = `{"text":"Bye","color":"red"}`

	set, err := Compose(cfg, "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	st := decodeStatus(t, set.StatusComponent)
	desc := st.Description
	if desc["text"] != "Hi" || desc["color"] != "#ff8800" {
		t.Errorf("组件 description = %v", desc)
	}
	if st.Favicon != "data:image/png;base64,AAAA" {
		t.Errorf("favicon = %q", st.Favicon)
	}

	// 纯文本版本不受组件影响
	plain := decodeStatus(t, set.Status)
	if plain.Description["text"] != cfg.MOTD.Text {
		t.Error("Status 应使用纯文本 MOTD")
	}

	if set.DisconnectComponent != `{"text":"Bye","color":"red"}` {
		t.Errorf("DisconnectComponent = %s", set.DisconnectComponent)
	}
}

func TestComposeInvalidComponent(t *testing.T) {
	cfg := config.Default()
	cfg.Disconnect.Component = `{"text":`
	if _, err := Compose(cfg, ""); err == nil {
		t.Fatal("非法的组件 JSON 应当返回错误")
	}
}

func TestStripColorCodes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"§cHello §8World", "Hello World"},
		{"plain", "plain"},
		{"", ""},
		{"trailing§", "trailing"},
		{"§§ab", "ab"},
		{"§§§ab", "b"},
		{"a§§§§b", "ab"},
		{"§l✗ §cOffline", "✗ Offline"},
	}
	for _, tt := range tests {
		if got := StripColorCodes(tt.in); got != tt.want {
			t.Errorf("StripColorCodes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
