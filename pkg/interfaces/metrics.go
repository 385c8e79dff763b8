package interfaces

// BandwidthStats 某个协议的带宽统计
type BandwidthStats struct {
	// TotalIn 累计接收字节
	TotalIn int64
	// TotalOut 累计发送字节
	TotalOut int64
	// RateIn 最近 60 秒平均接收速率（字节/秒）
	RateIn float64
	// RateOut 最近 60 秒平均发送速率（字节/秒）
	RateOut float64
}

// BandwidthReporter 带宽统计提供者
type BandwidthReporter interface {
	// Bandwidth 返回协议的带宽统计，未知协议返回零值
	Bandwidth(protocol string) BandwidthStats
}
