// Package evqueue 实现端点事件队列与延迟完成链
//
// # 事件队列
//
// Queue 是每个端点独有的有序任务队列，运行在端点所属的 strand 上。
// 每个任务收到一个 Guard，任务必须在其异步工作（包括嵌套派发）全部完成后调用
// Guard.Done()，队列才会执行下一个任务。因此同一端点的任务严格按提交顺序执行且互不重叠；
// 共享同一 strand 的不同端点之间的任务可以交错。
//
// # 延迟完成链
//
// Defer 持有有序的后续回调列表与引用计数的 Token。最后一个 Token 释放时，
// 回调列表在 strand 上按顺序执行且只执行一次。nil Token 表示空链，释放它不做任何事。
//
//	d := evqueue.NewDefer(strand).Then(closeSocket).Then(resume)
//	tok, _ := d.Hold()
//	q.Dispatch(func(g *evqueue.Guard) {
//	    go func() {
//	        flush()
//	        g.Done()
//	    }()
//	}, tok.Clone())
//	tok.Release()
package evqueue
