package netkit

import (
	cryptotls "crypto/tls"

	"github.com/dep2p/go-netkit/internal/core/transport/tcp"
	"github.com/dep2p/go-netkit/internal/core/transport/tls"
	"github.com/dep2p/go-netkit/internal/core/transport/udp"
	"github.com/dep2p/go-netkit/internal/core/transport/ws"
)

// ════════════════════════════════════════════════════════════════════════════
//                              端点工厂
// ════════════════════════════════════════════════════════════════════════════
//
// 工厂方法只创建端点，不启动。创建的端点由运行时跟踪，
// Runtime.Stop 时一并停止；调用 Release 可解除跟踪。

// NewTCPClient 创建 TCP 客户端
func (r *Runtime) NewTCPClient(address string) (*Client, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	return trackClient(r, tcp.NewClient(opts, address))
}

// NewTCPServer 创建 TCP 服务端，address 端口为 0 时由系统分配
func (r *Runtime) NewTCPServer(address string) (*Server, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	return trackServer(r, tcp.NewServer(opts, address))
}

// NewTLSClient 创建 TLS 客户端
//
// tc 为 nil 时由配置中的 TLS 段生成。
func (r *Runtime) NewTLSClient(address string, tc *cryptotls.Config) (*Client, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	c, err := tls.NewClient(opts, address, tc)
	if err != nil {
		return nil, err
	}
	return trackClient(r, c)
}

// NewTLSServer 创建 TLS 服务端
//
// tc 为 nil 时从配置的证书文件加载。
func (r *Runtime) NewTLSServer(address string, tc *cryptotls.Config) (*Server, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	s, err := tls.NewServer(opts, address, tc)
	if err != nil {
		return nil, err
	}
	return trackServer(r, s)
}

// NewUDPClient 创建 UDP 客户端，WithARQ 启用可靠传输
func (r *Runtime) NewUDPClient(address string, options ...UDPOption) (*Client, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	return trackClient(r, udp.NewClient(opts, address, options...))
}

// NewUDPServer 创建 UDP 服务端，每个远端地址对应一个会话
func (r *Runtime) NewUDPServer(address string, options ...UDPOption) (*Server, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	return trackServer(r, udp.NewServer(opts, address, options...))
}

// NewWSClient 创建 WebSocket 客户端，url 形如 ws://host:port/path
func (r *Runtime) NewWSClient(url string, options ...WSOption) (*Client, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	c, err := ws.NewClient(opts, url, options...)
	if err != nil {
		return nil, err
	}
	return trackClient(r, c)
}

// NewWSServer 创建 WebSocket 服务端，升级路径取自配置
func (r *Runtime) NewWSServer(address string, options ...WSOption) (*Server, error) {
	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	return trackServer(r, ws.NewServer(opts, address, options...))
}

func trackClient(r *Runtime, c *Client) (*Client, error) {
	if err := r.track(c); err != nil {
		return nil, err
	}
	return c, nil
}

func trackServer(r *Runtime, s *Server) (*Server, error) {
	if err := r.track(s); err != nil {
		return nil, err
	}
	return s, nil
}
