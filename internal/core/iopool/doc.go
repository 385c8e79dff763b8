// Package iopool 提供串行执行上下文（strand）与执行池
//
// # 核心概念
//
// Strand 是一个单 goroutine 执行器：投递到同一个 Strand 的回调严格按提交顺序执行，
// 且任意两个回调不会并发运行。多个端点可以共享同一个 Strand。
//
// Pool 持有 N 个 Strand，按轮询方式分配给新创建的端点。
//
// # 定时器
//
// Strand.AfterFunc 基于 benbjohnson/clock 创建定时器，到期后回调被投递回 Strand 执行。
// 测试中注入 clock.NewMock() 即可精确驱动所有定时行为。
//
// # 使用示例
//
//	pool := iopool.New(4, clock.New())
//	pool.Start()
//	defer pool.Stop(context.Background())
//
//	s := pool.Next()
//	s.Post(func() { ... })
package iopool
