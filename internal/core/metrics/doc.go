// Package metrics 收集端点状态与流量指标
//
// Collector 作为 endpoint.Observer 挂到每个端点（含服务端会话），
// 同时导出 Prometheus 指标并维护按协议的带宽统计：
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector("netkit", nil)
//	c.MustRegister(reg)
//
//	stats := c.Stats("tcp")
//	fmt.Printf("In: %d, Out: %d, RateIn: %.2f B/s\n", stats.TotalIn, stats.TotalOut, stats.RateIn)
//
// 速率基于 60 个 1 秒桶的滑动窗口，时钟可注入以便测试。
package metrics
