package udp

import (
	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/arq"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
)

// ============================================================================
// datagram 客户端与会话共用的数据报处理
// ============================================================================

// datagram 所有字段只在端点 strand 上访问
type datagram struct {
	ep     *endpoint.Endpoint
	arqCfg config.ARQConfig
	useARQ bool

	sess    *arq.Session
	pending [][]byte
}

// newARQ 为本连接周期创建 ARQ 会话，未启用时返回 nil
func (d *datagram) newARQ(write func([]byte) error) *arq.Session {
	if !d.useARQ {
		return nil
	}
	d.sess = arq.NewSession(d.ep, d.arqCfg, write)
	return d.sess
}

// onDatagram 处理一个入站数据报
//
// starting 期间握手报文立即交给 ARQ，其余数据报缓存到 PostRecv。
func (d *datagram) onDatagram(pkt []byte) {
	switch d.ep.State() {
	case endpoint.StateStarted:
		d.process(pkt)
	case endpoint.StateStarting:
		if d.sess != nil && !d.sess.Established() {
			d.sess.Input(pkt)
			return
		}
		d.pending = append(d.pending, pkt)
	}
}

func (d *datagram) process(pkt []byte) {
	if d.sess != nil {
		d.sess.Input(pkt)
		return
	}
	d.ep.HandleRecv(pkt)
}

// flushPending 进入 started 后处理缓存的数据报
func (d *datagram) flushPending() {
	pending := d.pending
	d.pending = nil
	for _, pkt := range pending {
		if !d.ep.IsStarted() {
			return
		}
		d.process(pkt)
	}
}

// send 经 ARQ 或直接写出，write 在独立 goroutine 中执行
func (d *datagram) send(data []byte, maxSize int, write func([]byte) (int, error), done func(int, error)) {
	if d.sess != nil {
		if err := d.sess.Send(data); err != nil {
			done(0, err)
			return
		}
		done(len(data), nil)
		return
	}
	if maxSize > 0 && len(data) > maxSize {
		done(0, endpoint.ErrMessageSize)
		return
	}
	if write == nil {
		done(0, transport.ErrNoConnection)
		return
	}
	go func() {
		done(write(data))
	}()
}

// closeARQ 拆除时发送 FIN
func (d *datagram) closeARQ() {
	if d.sess != nil {
		d.sess.Close()
	}
}

// reset 传输关闭后清理本周期状态
func (d *datagram) reset() {
	if d.sess != nil {
		d.sess.Reset()
	}
	d.sess = nil
	d.pending = nil
}
