package arq

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// HeaderSize 握手头长度
const HeaderSize = 12

// 握手头标志位
const (
	FlagURG uint8 = 1 << iota
	FlagACK
	FlagPSH
	FlagRST
	FlagSYN
	FlagFIN
)

// Header 握手头
type Header struct {
	Seq      uint32
	Ack      uint32
	Flags    uint8
	Padding  uint8
	Checksum uint16
}

// MakeSYN 构造 SYN
func MakeSYN(seq uint32) Header {
	return Header{Seq: seq, Flags: FlagSYN}
}

// MakeSYNACK 构造 SYN-ACK
func MakeSYNACK(conv, ack uint32) Header {
	return Header{Seq: conv, Ack: ack, Flags: FlagSYN | FlagACK}
}

// MakeFIN 构造 FIN
func MakeFIN(conv uint32) Header {
	return Header{Seq: conv, Flags: FlagFIN}
}

// Has 报告是否同时设置了 flags 中的所有位
func (h Header) Has(flags uint8) bool {
	return h.Flags&flags == flags
}

// IsSYN 纯 SYN
func (h Header) IsSYN() bool {
	return h.Flags&(FlagSYN|FlagACK|FlagFIN) == FlagSYN
}

// IsSYNACK SYN-ACK
func (h Header) IsSYNACK() bool {
	return h.Flags&(FlagSYN|FlagACK|FlagFIN) == FlagSYN|FlagACK
}

// IsFIN FIN
func (h Header) IsFIN() bool {
	return h.Has(FlagFIN)
}

// Marshal 序列化并填入校验和
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	h.MarshalTo(b)
	return b
}

// MarshalTo 序列化到 b（长度至少 12），返回填入的校验和
func (h Header) MarshalTo(b []byte) uint16 {
	binary.LittleEndian.PutUint32(b[0:], h.Seq)
	binary.LittleEndian.PutUint32(b[4:], h.Ack)
	b[8] = h.Flags
	b[9] = h.Padding
	sum := Checksum(b[:HeaderSize-2])
	binary.LittleEndian.PutUint16(b[10:], sum)
	return sum
}

// ParseHeader 解析并校验握手头
func ParseHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, ErrHeaderSize
	}
	h := Header{
		Seq:      binary.LittleEndian.Uint32(b[0:]),
		Ack:      binary.LittleEndian.Uint32(b[4:]),
		Flags:    b[8],
		Padding:  b[9],
		Checksum: binary.LittleEndian.Uint16(b[10:]),
	}
	if Checksum(b[:HeaderSize-2]) != h.Checksum {
		return h, ErrBadChecksum
	}
	return h, nil
}

// Checksum 16 位反码和
//
// 按小端 16 位字累加，奇数长度时最后一个字节补零。
func Checksum(b []byte) uint16 {
	var sum uint32
	for len(b) >= 2 {
		sum += uint32(binary.LittleEndian.Uint16(b))
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0])
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

func (h Header) String() string {
	var names []string
	for i, n := range []string{"URG", "ACK", "PSH", "RST", "SYN", "FIN"} {
		if h.Flags&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	return fmt.Sprintf("[%s seq=%d ack=%d]", strings.Join(names, "|"), h.Seq, h.Ack)
}
