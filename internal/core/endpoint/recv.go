package endpoint

// ============================================================================
// 接收
// ============================================================================

// Exec 在 strand 上执行 fn 并等待完成
//
// 供协议层的读循环使用：读 goroutine 在数据处理完之前不会读取下一条，形成背压。
// strand 已关闭时返回 false。不能在 strand 上调用。
func (e *Endpoint) Exec(fn func()) bool {
	done := make(chan struct{})
	if !e.strand.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

// Deliver 把一条入站消息交给端点并等待处理完成
func (e *Endpoint) Deliver(data []byte) bool {
	return e.Exec(func() { e.HandleRecv(data) })
}

// HandleRecv 处理一条入站消息（strand 上）
//
// 端点不处于 started 时丢弃。
func (e *Endpoint) HandleRecv(data []byte) {
	if e.state.Load() != StateStarted {
		return
	}
	e.Touch()
	e.traffic(len(data), 0)
	if fn := e.callbacks().Recv; fn != nil {
		fn(data)
	}
}

// Touch 记录一次对端活动，推迟静默超时（strand 上）
func (e *Endpoint) Touch() {
	e.silence.last = e.strand.Now()
}
