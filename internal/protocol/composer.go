package protocol

// ComponentProtocolVersion 1.16 的协议号。从这个版本起客户端接受带自定义颜色的 JSON 文本组件，
// 更早的客户端只能收到预渲染的 § 格式文本。
// 1.16.4-pre1 之后的快照协议号带 0x40000000 前缀，同样满足该判断。
const ComponentProtocolVersion = 735

// StatusResponsePacketID 状态响应与登录断开共用的包 ID
const StatusResponsePacketID = 0x00

// ResponseSet 启动时预先生成的全部响应，之后只读，可在所有连接间共享
type ResponseSet struct {
	Status              string // 纯文本 status JSON
	StatusComponent     string // 组件 status JSON
	Disconnect          string // 纯文本断开 JSON
	DisconnectComponent string // 组件断开 JSON

	LegacyMOTD      string // 1.4-1.6 使用的 MOTD
	LegacyVersion   string // 1.4-1.6 使用的版本名
	LegacyMOTDPlain string // 去掉颜色代码的 MOTD，供 Beta 1.8-1.3 使用
}

// SupportsComponents 判断客户端是否支持组件 JSON
func SupportsComponents(protocolVersion int32) bool {
	return protocolVersion >= ComponentProtocolVersion
}

// Select 根据下一状态和协议版本选择响应内容
func (s *ResponseSet) Select(protocolVersion int32, state NextState) string {
	component := SupportsComponents(protocolVersion)
	switch state {
	case StateLogin:
		if component {
			return s.DisconnectComponent
		}
		return s.Disconnect
	default:
		if component {
			return s.StatusComponent
		}
		return s.Status
	}
}

// AppendPacket 组帧：VarInt(包长) + VarInt(包 ID) + VarString(payload)
func AppendPacket(dst []byte, packetID int32, payload string) []byte {
	bodyLen := VarIntSize(packetID) + VarIntSize(int32(len(payload))) + len(payload)
	dst = AppendVarInt(dst, int32(bodyLen))
	dst = AppendVarInt(dst, packetID)
	return AppendString(dst, payload)
}
