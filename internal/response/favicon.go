package response

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"

	"github.com/cloudwego/base64x"
	"github.com/rs/zerolog"
)

const (
	faviconPrefix = "data:image/png;base64,"
	faviconSize   = 64
)

// LoadFavicon 读取服务器图标并编码为 data URI。
// 路径为空或文件不存在时返回空串，图标不是 64x64 PNG 时只告警。
func LoadFavicon(path string, log zerolog.Logger) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("找不到服务器图标，响应中不包含 favicon")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取服务器图标失败: %w", err)
	}

	img, err := png.DecodeConfig(bytes.NewReader(data))
	switch {
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("服务器图标不是有效的 PNG")
	case img.Width != faviconSize || img.Height != faviconSize:
		log.Warn().
			Str("path", path).
			Int("width", img.Width).
			Int("height", img.Height).
			Msg("服务器图标应为 64x64，客户端可能无法显示")
	}

	return faviconPrefix + base64x.StdEncoding.EncodeToString(data), nil
}
