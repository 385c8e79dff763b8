package arq

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_ChecksumRoundTrip(t *testing.T) {
	seqs := []uint32{0, 1, 2, 0x7fff, 0xffff, 0x10000, 0x12345678, math.MaxUint32 - 1, math.MaxUint32}
	for i := uint32(0); i < 2000; i++ {
		seqs = append(seqs, i*2654435761)
	}

	for _, seq := range seqs {
		b := MakeSYN(seq).Marshal()
		require.Len(t, b, HeaderSize)

		embedded := binary.LittleEndian.Uint16(b[10:])
		assert.Equal(t, Checksum(b[:10]), embedded, "seq=%d", seq)

		h, err := ParseHeader(b)
		require.NoError(t, err)
		assert.Equal(t, seq, h.Seq)
		assert.True(t, h.IsSYN())
	}
}

func TestHeader_Layout(t *testing.T) {
	b := MakeSYNACK(0x01020304, 0x0a0b0c0d).Marshal()
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[0:4])
	assert.Equal(t, []byte{0x0d, 0x0c, 0x0b, 0x0a}, b[4:8])
	assert.Equal(t, FlagSYN|FlagACK, b[8])
	assert.Equal(t, byte(0), b[9])

	h, err := ParseHeader(b)
	require.NoError(t, err)
	assert.True(t, h.IsSYNACK())
	assert.False(t, h.IsSYN())
	assert.False(t, h.IsFIN())
	assert.Equal(t, "[ACK|SYN seq=16909060 ack=168496141]", h.String())
}

func TestHeader_FlagBits(t *testing.T) {
	assert.Equal(t, uint8(1), FlagURG)
	assert.Equal(t, uint8(2), FlagACK)
	assert.Equal(t, uint8(4), FlagPSH)
	assert.Equal(t, uint8(8), FlagRST)
	assert.Equal(t, uint8(16), FlagSYN)
	assert.Equal(t, uint8(32), FlagFIN)

	fin := MakeFIN(9)
	assert.True(t, fin.IsFIN())
	assert.True(t, fin.Has(FlagFIN))
}

func TestParseHeader_Errors(t *testing.T) {
	_, err := ParseHeader(make([]byte, 11))
	assert.ErrorIs(t, err, ErrHeaderSize)
	_, err = ParseHeader(make([]byte, 13))
	assert.ErrorIs(t, err, ErrHeaderSize)

	b := MakeSYN(42).Marshal()
	b[0] ^= 0xff
	_, err = ParseHeader(b)
	assert.ErrorIs(t, err, ErrBadChecksum)
}

func TestChecksum_KnownValues(t *testing.T) {
	// 全零的反码和为 0xffff
	assert.Equal(t, uint16(0xffff), Checksum(make([]byte, 10)))
	// 0x0001 + 0xfffe = 0xffff -> 0
	assert.Equal(t, uint16(0), Checksum([]byte{0x01, 0x00, 0xfe, 0xff}))
	// 进位回卷
	assert.Equal(t, ^uint16(0x0002), Checksum([]byte{0xff, 0xff, 0x02, 0x00}))
	// 奇数长度
	assert.Equal(t, ^uint16(0x0005), Checksum([]byte{0x05}))
}

func TestConvFor(t *testing.T) {
	a := ConvFor("127.0.0.1:9000")
	b := ConvFor("127.0.0.1:9001")
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ConvFor("127.0.0.1:9000"))
}
