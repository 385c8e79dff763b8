// Package endpoint 实现客户端、会话与服务端共享的连接生命周期引擎
//
// # 状态机
//
// 端点状态只能按 stopped → starting → started → stopping → stopped 迁移
// （连接失败时允许 starting → stopping）。所有迁移通过 StateCell 上的 CAS 完成，
// 失去竞争不是错误，说明另一条路径已在处理该事件。
//
// # 执行模型
//
// 每个端点绑定一个 iopool.Strand 和一个 evqueue.Queue。启动、发送、断开都作为
// 队列任务执行，同一端点的任务严格有序且不重叠。阻塞 I/O 在辅助 goroutine 中进行，
// 结果投递回 strand。
//
// # 协议钩子
//
// 具体协议（TCP、TLS、UDP、WebSocket、ARQ）实现 Hooks 接口：
//
//	DoInit            启动前准备
//	DoConnect         异步连接/握手，完成后调用 done
//	PostRecv          启动接收循环，入站数据经 Deliver/HandleRecv 送达
//	DoSend            异步写出一条消息
//	HandleDisconnect  断开时的协议动作（FIN、关闭帧），可持有 chain 推迟关闭
//	CloseTransport    关闭底层传输
//
// # 拆除顺序
//
// 取消定时器与延迟任务 → 排队中的发送以 ErrCanceled 失败 → 触发断开回调（至多一次，
// 且仅当之前处于 started）→ HandleDisconnect → 从注册表移除 → 关闭传输 →
// stopping → stopped → 执行后续环节（客户端重连或会话释放服务端保活引用）。
package endpoint
