package udp

// Protocol 协议标签
const (
	Protocol    = "udp"
	ProtocolARQ = "udp+arq"
)

type settings struct {
	arq bool
}

// Option UDP 端点选项
type Option func(*settings)

// WithARQ 在 UDP 之上启用可靠传输
func WithARQ() Option {
	return func(s *settings) { s.arq = true }
}

func apply(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s settings) protocol() string {
	if s.arq {
		return ProtocolARQ
	}
	return Protocol
}
