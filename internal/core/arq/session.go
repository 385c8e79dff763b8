package arq

import (
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/arq/kcp"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/arq")

// Phase 握手阶段
type Phase int

const (
	// PhaseIdle 未开始
	PhaseIdle Phase = iota
	// PhaseSynSent 发起方已发送 SYN
	PhaseSynSent
	// PhaseSynReceived 响应方已收到 SYN
	PhaseSynReceived
	// PhaseEstablished 已建立，可以收发数据
	PhaseEstablished
	// PhaseClosing 拆除中
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSynSent:
		return "syn-sent"
	case PhaseSynReceived:
		return "syn-received"
	case PhaseEstablished:
		return "established"
	case PhaseClosing:
		return "closing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Endpoint 会话所属的端点
type Endpoint interface {
	Strand() *iopool.Strand
	Disconnect(err error)
	HandleRecv(data []byte)
	Touch()
	FireHandshake(err error)
}

// ConvFor 响应方根据远端地址计算 conv，保证非 0
func ConvFor(remote string) uint32 {
	conv := murmur3.Sum32([]byte(remote))
	if conv == 0 {
		conv = 1
	}
	return conv
}

// ============================================================================
// Session
// ============================================================================

// Session 一个 ARQ 会话
//
// 除构造外，所有方法都必须在端点的 strand 上调用。
type Session struct {
	cfg    config.ARQConfig
	ep     Endpoint
	strand *iopool.Strand
	write  func([]byte) error

	phase  Phase
	conv   uint32
	synSeq uint32
	engine *kcp.KCP
	epoch  time.Time

	synTimer    *iopool.Timer
	updateTimer *iopool.Timer
	connectDone func(error)
	peerClosed  bool
}

// NewSession 创建会话，write 负责把一个数据报写到 socket
func NewSession(ep Endpoint, cfg config.ARQConfig, write func([]byte) error) *Session {
	return &Session{
		cfg:    cfg,
		ep:     ep,
		strand: ep.Strand(),
		write:  write,
	}
}

// Phase 返回握手阶段
func (s *Session) Phase() Phase { return s.phase }

// Conv 返回会话标识
func (s *Session) Conv() uint32 { return s.conv }

// Established 报告握手是否完成
func (s *Session) Established() bool { return s.phase == PhaseEstablished }

// WaitSnd 返回未确认的分片数
func (s *Session) WaitSnd() int {
	if s.engine == nil {
		return 0
	}
	return s.engine.WaitSnd()
}

// ============================================================================
// 握手
// ============================================================================

// Connect 以发起方身份开始握手，收到合法 SYN-ACK 后以 nil 调用 done
//
// 超时由调用方负责，届时调用 Close。
func (s *Session) Connect(done func(error)) {
	s.phase = PhaseSynSent
	s.synSeq = uint32(s.strand.Now().UnixMilli())
	s.connectDone = done
	s.sendSYN()
}

func (s *Session) sendSYN() {
	if s.phase != PhaseSynSent {
		return
	}
	s.writeHeader(MakeSYN(s.synSeq))
	s.synTimer = s.strand.AfterFunc(s.cfg.HandshakeInterval.Duration(), s.sendSYN)
}

// Accept 以响应方身份处理 SYN，回复 SYN-ACK 并立即进入 established
func (s *Session) Accept(syn Header, remote string) {
	s.phase = PhaseSynReceived
	s.conv = ConvFor(remote)
	s.synSeq = syn.Seq
	s.writeHeader(MakeSYNACK(s.conv, syn.Seq+1))
	s.establish()
}

func (s *Session) establish() {
	s.phase = PhaseEstablished
	s.synTimer.Stop()
	s.synTimer = nil

	s.engine = kcp.New(s.conv, s.output)
	if err := s.engine.SetMtu(s.cfg.MTU); err != nil {
		logger.Warn("ARQ MTU 无效，使用默认值", "mtu", s.cfg.MTU, "error", err)
	}
	s.engine.WndSize(s.cfg.SendWindow, s.cfg.RecvWindow)
	nodelay, nc := 0, 0
	if s.cfg.NoDelay {
		nodelay = 1
	}
	if s.cfg.NoCongestion {
		nc = 1
	}
	s.engine.NoDelay(nodelay, s.cfg.Interval.Milliseconds(), s.cfg.FastResend, nc)

	s.epoch = s.strand.Now()
	s.engine.Update(s.now())
	s.schedule()

	logger.Debug("ARQ 握手完成", "conv", s.conv)
	s.ep.FireHandshake(nil)
}

// ============================================================================
// 输入输出
// ============================================================================

// Input 处理一个入站数据报
func (s *Session) Input(pkt []byte) {
	if len(pkt) == HeaderSize {
		s.handleHeader(pkt)
		return
	}
	if s.phase != PhaseEstablished {
		return
	}

	if err := s.engine.Input(pkt); err != nil {
		s.fatal(err)
		return
	}
	s.ep.Touch()
	s.drain()
	s.schedule()
}

func (s *Session) handleHeader(pkt []byte) {
	h, err := ParseHeader(pkt)
	if err != nil {
		if s.phase == PhaseEstablished {
			s.fatal(err)
		}
		// 握手阶段的畸形回复被丢弃，由重发继续
		return
	}

	switch {
	case h.IsSYNACK():
		if s.phase == PhaseSynSent && h.Ack == s.synSeq+1 {
			s.conv = h.Seq
			s.establish()
			if done := s.connectDone; done != nil {
				s.connectDone = nil
				done(nil)
			}
		}

	case h.IsSYN():
		// SYN-ACK 丢失时对端会重发 SYN
		if s.phase == PhaseEstablished && s.conv != 0 && s.engine != nil {
			s.writeHeader(MakeSYNACK(s.conv, h.Seq+1))
		}

	case h.IsFIN():
		if s.phase == PhaseEstablished && h.Seq == s.conv {
			s.peerClosed = true
			s.ep.Disconnect(endpoint.ErrPeerClosed)
		}
	}
}

// fatal 稳态输入无法解码，断开会话
func (s *Session) fatal(err error) {
	logger.Debug("ARQ 输入无法解码", "conv", s.conv, "error", err)
	s.ep.Disconnect(fmt.Errorf("%w: %w", endpoint.ErrMessageSize, err))
}

func (s *Session) drain() {
	for s.phase == PhaseEstablished {
		size := s.engine.PeekSize()
		if size < 0 {
			return
		}
		buf := make([]byte, size)
		n, err := s.engine.Recv(buf)
		if err != nil {
			return
		}
		s.ep.HandleRecv(buf[:n])
	}
}

// Send 发送一条消息并立即刷新
func (s *Session) Send(data []byte) error {
	if s.phase != PhaseEstablished {
		return ErrNotEstablished
	}
	if err := s.engine.Send(data); err != nil {
		return err
	}
	s.engine.Flush(s.now())
	s.schedule()
	return nil
}

func (s *Session) output(data []byte) {
	if err := s.write(data); err != nil {
		logger.Debug("ARQ 写数据报失败", "conv", s.conv, "error", err)
	}
}

func (s *Session) writeHeader(h Header) {
	if err := s.write(h.Marshal()); err != nil {
		logger.Debug("ARQ 写握手头失败", "header", h, "error", err)
	}
}

// ============================================================================
// 计时
// ============================================================================

func (s *Session) now() uint32 {
	return uint32(s.strand.Now().Sub(s.epoch) / time.Millisecond)
}

// schedule 按引擎的 Check 结果重设更新定时器
func (s *Session) schedule() {
	if s.phase != PhaseEstablished {
		return
	}
	s.updateTimer.Stop()

	now := s.now()
	delay := time.Duration(s.engine.Check(now)-now) * time.Millisecond
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	s.updateTimer = s.strand.AfterFunc(delay, s.update)
}

func (s *Session) update() {
	if s.phase != PhaseEstablished {
		return
	}
	s.engine.Update(s.now())
	if s.engine.Dead() {
		s.ep.Disconnect(fmt.Errorf("%w: %w", endpoint.ErrTimeout, ErrDeadLink))
		return
	}
	s.schedule()
}

// ============================================================================
// 拆除
// ============================================================================

// Close 停止计时并尽力发送一次 FIN
//
// 收到对端 FIN 而断开时不回复。
func (s *Session) Close() {
	s.synTimer.Stop()
	s.updateTimer.Stop()
	s.synTimer, s.updateTimer = nil, nil
	s.connectDone = nil

	if s.phase == PhaseEstablished && !s.peerClosed {
		s.writeHeader(MakeFIN(s.conv))
	}
	s.phase = PhaseClosing
}

// Reset 传输关闭后回到 idle，会话可用于下一次握手
func (s *Session) Reset() {
	s.phase = PhaseIdle
	s.conv = 0
	s.synSeq = 0
	s.engine = nil
	s.peerClosed = false
}
