// Package tcp 实现 TCP 客户端与服务端
//
// TCP 是字节流传输，接收回调收到的是一次读取返回的数据块，
// 不保留发送方的消息边界。
package tcp
