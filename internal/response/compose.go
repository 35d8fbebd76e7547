package response

import (
	"encoding/json"
	"fmt"

	"github.com/Tnze/go-mc/chat"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"placeholder-mc-server/internal/config"
	"placeholder-mc-server/internal/protocol"
)

// sampleUUID 悬停列表中所有条目共用的 UUID
var sampleUUID = uuid.MustParse("147e3454-1727-4807-9ba5-fe35b25ddbc1")

// placeholderProtocol 故意不匹配任何客户端，使版本文字以红色显示
const placeholderProtocol = -1

type status struct {
	EnforcesSecureChat bool    `json:"enforcesSecureChat"`
	PreviewsChat       bool    `json:"previewsChat"`
	Version            version `json:"version"`
	Players            players `json:"players"`
	Description        any     `json:"description"`
	Favicon            string  `json:"favicon,omitempty"`
}

type version struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type players struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []samplePlayer `json:"sample"`
}

type samplePlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Compose 根据配置预先生成全部响应。favicon 为完整的 data URI，空串表示没有图标。
func Compose(cfg *config.Config, favicon string) (*protocol.ResponseSet, error) {
	statusPlain, err := marshalStatus(cfg, favicon, chat.Text(cfg.MOTD.Text))
	if err != nil {
		return nil, fmt.Errorf("生成 status JSON 失败: %w", err)
	}

	disconnectPlain, err := sonic.MarshalString(chat.Text(cfg.Disconnect.Text))
	if err != nil {
		return nil, fmt.Errorf("生成断开 JSON 失败: %w", err)
	}

	set := &protocol.ResponseSet{
		Status:              statusPlain,
		StatusComponent:     statusPlain,
		Disconnect:          disconnectPlain,
		DisconnectComponent: disconnectPlain,
		LegacyMOTD:          cfg.MOTD.Legacy,
		LegacyVersion:       cfg.Version.Text,
		LegacyMOTDPlain:     StripColorCodes(cfg.MOTD.Legacy),
	}

	// 未配置组件时，新版客户端沿用纯文本响应
	motdComponent, err := config.ComponentJSON(cfg.MOTD.Component)
	if err != nil {
		return nil, fmt.Errorf("motd.component: %w", err)
	}
	if motdComponent != "" {
		set.StatusComponent, err = marshalStatus(cfg, favicon, json.RawMessage(motdComponent))
		if err != nil {
			return nil, fmt.Errorf("生成组件 status JSON 失败: %w", err)
		}
	}

	disconnectComponent, err := config.ComponentJSON(cfg.Disconnect.Component)
	if err != nil {
		return nil, fmt.Errorf("disconnect.component: %w", err)
	}
	if disconnectComponent != "" {
		set.DisconnectComponent = disconnectComponent
	}

	return set, nil
}

func marshalStatus(cfg *config.Config, favicon string, description any) (string, error) {
	// 客户端只有在 max 与 sample 数量一致时才显示悬停列表
	sample := make([]samplePlayer, 0, len(cfg.Version.Hover))
	for _, line := range cfg.Version.Hover {
		sample = append(sample, samplePlayer{Name: line, ID: sampleUUID.String()})
	}

	return sonic.MarshalString(status{
		Version: version{
			Name:     cfg.Version.Text,
			Protocol: placeholderProtocol,
		},
		Players: players{
			Max:    len(sample),
			Online: len(sample),
			Sample: sample,
		},
		Description: description,
		Favicon:     favicon,
	})
}

// StripColorCodes 去掉 § 格式代码及其后的一个字符
func StripColorCodes(s string) string {
	out := make([]rune, 0, len(s))
	skip := false
	for _, r := range s {
		if skip {
			// § 与紧随的一个字符成对移除，该字符本身是 § 也不再开启新的一对
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
