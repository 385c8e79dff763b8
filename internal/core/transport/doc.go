// Package transport 提供各协议共享的客户端、服务端与会话实现
//
// 协议包（tcp、tls、udp、ws）只负责建立 Conn 与实现 Backend，
// 生命周期与会话管理都在本包完成：
//
//   - Client 内嵌 endpoint.Endpoint，每个连接周期通过 DialFunc 获取新连接
//   - Server 自身也是一个端点，拆除时先停止所有会话再关闭监听
//   - Session 由 Server.Accept 创建，以远端地址为 key 登记在注册表中
//
// 读循环把每条消息通过 Exec 交给端点 strand，处理完成后才读取下一条，
// 慢消费者会对发送方形成背压。
package transport
