package kcp

import "encoding/binary"

const (
	cmdPush uint8 = 81
	cmdAck  uint8 = 82
	cmdWask uint8 = 83
	cmdWins uint8 = 84
)

// Overhead 分片头长度
const Overhead = 24

type segment struct {
	conv uint32
	cmd  uint8
	frg  uint8
	wnd  uint16
	ts   uint32
	sn   uint32
	una  uint32

	rto      uint32
	xmit     uint32
	resendts uint32
	fastack  uint32

	data []byte
}

// encode 写入分片头，返回写入的字节数
func (s *segment) encode(b []byte) int {
	binary.LittleEndian.PutUint32(b[0:], s.conv)
	b[4] = s.cmd
	b[5] = s.frg
	binary.LittleEndian.PutUint16(b[6:], s.wnd)
	binary.LittleEndian.PutUint32(b[8:], s.ts)
	binary.LittleEndian.PutUint32(b[12:], s.sn)
	binary.LittleEndian.PutUint32(b[16:], s.una)
	binary.LittleEndian.PutUint32(b[20:], uint32(len(s.data)))
	return Overhead
}

// ConvOf 读取数据报首个分片的 conv
func ConvOf(packet []byte) (uint32, bool) {
	if len(packet) < Overhead {
		return 0, false
	}
	return binary.LittleEndian.Uint32(packet), true
}

// timediff 处理 32 位毫秒时间戳回绕
func timediff(later, earlier uint32) int32 {
	return int32(later - earlier)
}

func bound(lo, v, hi uint32) uint32 {
	return min(max(lo, v), hi)
}
