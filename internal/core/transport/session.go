package transport

import (
	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// Session 服务端接受的一条会话
//
// 会话只启动一次，停止后由拥有它的服务端从注册表中移除。
type Session struct {
	*endpoint.Endpoint

	server *Server
}

// Server 返回拥有该会话的服务端
func (s *Session) Server() *Server { return s.server }
