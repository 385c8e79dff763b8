package interfaces

// Subscription 事件订阅
type Subscription interface {
	// Out 返回接收事件的通道，Close 后关闭
	Out() <-chan any

	// Close 取消订阅
	Close() error
}

// EventSource 可订阅事件的组件
type EventSource interface {
	// Subscribe 订阅 eventType 指向的事件类型，如 new(netkit.EvtStateChanged)
	//
	// bufSize <= 0 时使用默认缓冲区。
	Subscribe(eventType any, bufSize int) (Subscription, error)
}
