package endpoint

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/endpoint")

// ============================================================================
// 选项
// ============================================================================

// Options 端点创建选项
type Options struct {
	// Role 端点角色
	Role Role

	// Protocol 协议标签，用于日志与指标
	Protocol string

	// ID 端点句柄，空则生成 uuid
	ID string

	// ConnectTimeout 连接超时（0 = 不限制）
	ConnectTimeout time.Duration

	// SilenceTimeout 静默超时（0 = 关闭）
	SilenceTimeout time.Duration

	// Owner 会话所属的注册表，Key 为会话在其中的 key
	Owner Owner
	Key   string

	// AfterStop 每次完全停止后在 strand 上执行
	AfterStop func(err error)

	// Observers 状态与流量观察者
	Observers []Observer
}

// ============================================================================
// Endpoint
// ============================================================================

// Endpoint 生命周期引擎
type Endpoint struct {
	id       string
	role     Role
	protocol string

	strand *iopool.Strand
	queue  *evqueue.Queue
	state  StateCell
	hooks  Hooks

	connectTimeout time.Duration
	owner          Owner
	key            string
	afterStop      func(error)
	observers      []Observer

	cbs atomic.Pointer[Callbacks]

	// mu 保护跨 goroutine 访问的字段
	mu            sync.Mutex
	connectCancel context.CancelFunc
	pendingStart  func(error)
	startPending  bool
	startErr      error
	stopped       chan struct{}
	reconnect     reconnectPolicy
	userStopped   bool
	localAddr     net.Addr
	remoteAddr    net.Addr
	userData      any

	// 以下字段只在 strand 上访问
	timers  map[any]*userTimer
	delayed map[uint64]*iopool.Timer
	delayID uint64
	silence silenceTimer

	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
}

// New 创建端点
//
// hooks 通常由协议层在构造自身后通过 SetHooks 设置。
func New(s *iopool.Strand, hooks Hooks, opts Options) *Endpoint {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	e := &Endpoint{
		id:             id,
		role:           opts.Role,
		protocol:       opts.Protocol,
		strand:         s,
		queue:          evqueue.New(s),
		hooks:          hooks,
		connectTimeout: opts.ConnectTimeout,
		owner:          opts.Owner,
		key:            opts.Key,
		afterStop:      opts.AfterStop,
		observers:      opts.Observers,
		timers:         make(map[any]*userTimer),
		delayed:        make(map[uint64]*iopool.Timer),
	}
	e.silence.timeout = opts.SilenceTimeout
	e.cbs.Store(&Callbacks{})
	e.state.observer = func(from, to State) {
		logger.Debug("状态迁移", "endpoint", log.TruncateID(e.id, 8), "role", e.role, "from", from, "state", to)
		for _, o := range e.observers {
			o.OnStateChange(e, from, to)
		}
	}
	return e
}

// SetHooks 设置协议钩子，必须在 Start 之前调用
func (e *Endpoint) SetHooks(h Hooks) {
	e.hooks = h
}

// Hooks 返回协议钩子
func (e *Endpoint) Hooks() Hooks { return e.hooks }

// ============================================================================
// 访问器
// ============================================================================

// ID 返回端点句柄
func (e *Endpoint) ID() string { return e.id }

// Role 返回端点角色
func (e *Endpoint) Role() Role { return e.role }

// Protocol 返回协议标签
func (e *Endpoint) Protocol() string { return e.protocol }

// Key 返回会话在注册表中的 key
func (e *Endpoint) Key() string { return e.key }

// Strand 返回端点所属的 strand
func (e *Endpoint) Strand() *iopool.Strand { return e.strand }

// State 返回当前状态
func (e *Endpoint) State() State { return e.state.Load() }

// IsStarted 报告端点是否处于 started
func (e *Endpoint) IsStarted() bool { return e.state.Load() == StateStarted }

// IsStopped 报告端点是否处于 stopped
func (e *Endpoint) IsStopped() bool { return e.state.Load() == StateStopped }

// BytesIn 返回累计接收字节数
func (e *Endpoint) BytesIn() uint64 { return e.bytesIn.Load() }

// BytesOut 返回累计发送字节数
func (e *Endpoint) BytesOut() uint64 { return e.bytesOut.Load() }

// SetAddrs 记录本地与远端地址
func (e *Endpoint) SetAddrs(local, remote net.Addr) {
	e.mu.Lock()
	e.localAddr, e.remoteAddr = local, remote
	e.mu.Unlock()
}

// LocalAddr 返回本地地址
func (e *Endpoint) LocalAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localAddr
}

// RemoteAddr 返回远端地址
func (e *Endpoint) RemoteAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteAddr
}

// SetUserData 设置用户数据
func (e *Endpoint) SetUserData(v any) {
	e.mu.Lock()
	e.userData = v
	e.mu.Unlock()
}

// UserData 返回用户数据
func (e *Endpoint) UserData() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userData
}

// Post 在端点的 strand 上执行 fn
func (e *Endpoint) Post(fn func()) bool {
	return e.strand.Post(fn)
}

// ============================================================================
// 回调注册
// ============================================================================

func (e *Endpoint) bind(set func(cb *Callbacks)) {
	for {
		old := e.cbs.Load()
		cp := *old
		set(&cp)
		if e.cbs.CompareAndSwap(old, &cp) {
			return
		}
	}
}

// BindInit 注册启动尝试回调
func (e *Endpoint) BindInit(fn func()) { e.bind(func(cb *Callbacks) { cb.Init = fn }) }

// BindStart 注册启动结果回调，每次启动尝试（含重连）调用一次
func (e *Endpoint) BindStart(fn func(err error)) { e.bind(func(cb *Callbacks) { cb.Start = fn }) }

// BindConnect 注册连接建立回调
func (e *Endpoint) BindConnect(fn func()) { e.bind(func(cb *Callbacks) { cb.Connect = fn }) }

// BindDisconnect 注册断开回调
func (e *Endpoint) BindDisconnect(fn func(err error)) {
	e.bind(func(cb *Callbacks) { cb.Disconnect = fn })
}

// BindRecv 注册接收回调
func (e *Endpoint) BindRecv(fn func(data []byte)) { e.bind(func(cb *Callbacks) { cb.Recv = fn }) }

// BindSend 注册发送完成回调
func (e *Endpoint) BindSend(fn func(data []byte)) { e.bind(func(cb *Callbacks) { cb.Send = fn }) }

// BindHandshake 注册握手回调
func (e *Endpoint) BindHandshake(fn func(err error)) {
	e.bind(func(cb *Callbacks) { cb.Handshake = fn })
}

// BindStop 注册完全停止回调
func (e *Endpoint) BindStop(fn func(err error)) { e.bind(func(cb *Callbacks) { cb.Stop = fn }) }

func (e *Endpoint) callbacks() *Callbacks {
	return e.cbs.Load()
}

// FireHandshake 由协议层在握手完成时调用（strand 上）
func (e *Endpoint) FireHandshake(err error) {
	if fn := e.callbacks().Handshake; fn != nil {
		fn(err)
	}
}

func (e *Endpoint) traffic(in, out int) {
	if in > 0 {
		e.bytesIn.Add(uint64(in))
	}
	if out > 0 {
		e.bytesOut.Add(uint64(out))
	}
	for _, o := range e.observers {
		o.OnTraffic(e, in, out)
	}
}
