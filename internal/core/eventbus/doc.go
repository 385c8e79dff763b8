// Package eventbus 按类型分发端点生命周期事件
//
// 事件以指针类型订阅与发射，例如 Subscribe(new(EvtStateChanged))。
// 发射不阻塞：订阅者缓冲区满时事件被丢弃并计数。
//
// Publisher 实现 endpoint.Observer，把端点状态迁移转换为
// EvtStateChanged 与 EvtSessionClosed 事件。
package eventbus
