// Package netkit 提供多协议网络端点工具包
//
// netkit 为 TCP、TLS、UDP、WebSocket 的客户端、服务端与会话提供统一的
// 生命周期与并发核心，并在 UDP 之上提供可选的可靠传输（ARQ）。
//
// # 核心概念
//
//   - Runtime: 运行时，持有执行池、事件总线与指标收集器
//   - Client: 客户端端点，支持断线重连
//   - Server: 服务端，为每个入站连接创建 Session
//   - Session: 服务端会话，停止后从服务端移除
//
// 每个端点绑定一个串行执行上下文（strand），所有回调都在该上下文中依次执行，
// 回调之间无需加锁。
//
// # 快速开始
//
//	rt, err := netkit.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Stop(context.Background())
//
//	srv, _ := rt.NewTCPServer("127.0.0.1:9000")
//	srv.BindRecv(func(s *netkit.Session, data []byte) {
//	    s.AsyncSend(data, nil)
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	cli, _ := rt.NewTCPClient("127.0.0.1:9000")
//	cli.BindRecv(func(data []byte) { fmt.Println(string(data)) })
//	if err := cli.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	_ = cli.Send([]byte("hello"))
//
// # 状态机
//
//	stopped ──Start──▶ starting ──连接成功──▶ started
//	   ▲                  │                      │
//	   │               连接失败                 Stop/断开
//	   │                  ▼                      ▼
//	   └────拆除完成──── stopping ◀──────────────┘
//
// 断开回调在每个连接周期内最多触发一次。客户端启用重连时，
// 回到 stopped 后按配置的延迟重新启动。
//
// # 事件与指标
//
// 状态迁移以 EvtStateChanged 发布到事件总线，会话停止时发布 EvtSessionClosed：
//
//	sub, _ := rt.Subscribe(new(netkit.EvtStateChanged), 64)
//	for evt := range sub.Out() { ... }
//
// 启用指标时，Prometheus 指标注册在 rt.Registry()，带宽统计由 rt.Bandwidth 提供。
//
// # 配置
//
// 配置见 config 包，可从 JSON 文件加载：
//
//	cfg, err := config.LoadFile("netkit.json")
//	rt, err := netkit.New(cfg)
package netkit
