// Package ws 实现 WebSocket 客户端与服务端
//
// 每条消息对应一个 WebSocket 二进制帧。HTTP 升级视为握手；
// 拆除时先发送关闭帧，再关闭底层连接。
package ws
