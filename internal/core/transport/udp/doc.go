// Package udp 实现 UDP 客户端与服务端
//
// 服务端只使用一个 socket，按远端地址把数据报分派到会话。
// 启用 ARQ 后，客户端在连接阶段完成 SYN/SYN-ACK 握手，
// 服务端只为携带合法 SYN 的未知地址创建会话，数据经 KCP 可靠有序地投递。
//
// 会话处于 starting 时收到的数据报先缓存，进入 started 后按到达顺序处理。
package udp
