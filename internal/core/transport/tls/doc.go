// Package tls 实现基于 TCP 的 TLS 客户端与服务端
//
// 握手在连接阶段完成，结果通过握手回调报告；握手失败视为连接失败。
// 会话的握手超时取 TLS 配置中的 HandshakeTimeout。
package tls
