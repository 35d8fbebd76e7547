//go:build windows

package network

// netpoll 不支持 Windows，NewServer 会回退到标准库引擎
func newNetpollEngine(*Server) (engine, error) {
	return nil, errEngineUnsupported
}
