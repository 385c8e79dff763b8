// Package arq 在数据报传输之上提供握手与可靠有序传输
//
// # 握手头
//
// 固定 12 字节，小端序：
//
//	seq:u32 ack:u32 flags:u8 padding:u8 checksum:u16
//
// flags 位：0 urg、1 ack、2 psh、3 rst、4 syn、5 fin。checksum 是前 10 字节的
// 16 位反码和（Internet checksum）。
//
// # 握手
//
//	发起方                                   响应方
//	SYN(seq=时间戳)          ───────────▶    conv = hash(远端地址)
//	                         ◀───────────    SYN-ACK(seq=conv, ack=seq+1)
//	校验 ack 与 checksum，采用 conv
//
// SYN 每 HandshakeInterval 重发一次，直到收到合法 SYN-ACK 或连接超时。
// 不合法或不匹配的回复被丢弃，重发继续。
//
// # 稳态
//
// 握手完成后数据报交给 kcp 引擎；每次输入与刷新之后按 Check 的结果重设更新定时器。
// 拆除前尽力发送一次 FIN；收到 FIN 的一方以 ErrPeerClosed 断开，不回复。
//
// Session 从不关闭 socket，只通过所属端点请求断开。
package arq
