// Package kcp 实现 KCP 兼容的 ARQ 引擎
//
// 引擎本身不做任何 I/O，也不读取时钟：调用方以毫秒为单位传入当前时间，
// 通过 output 回调取得待发送的数据报。这使得重传计时可以完全由 iopool 的定时器
// （以及测试中的模拟时钟）驱动。
//
// 分片头 24 字节，小端序：
//
//	conv:u32 cmd:u8 frg:u8 wnd:u16 ts:u32 sn:u32 una:u32 len:u32
//
// 命令：push(81) 数据、ack(82) 确认、wask(83) 窗口探测、wins(84) 窗口通告。
//
// 引擎不是并发安全的，所有调用必须在同一个 strand 上进行。
package kcp
