package kcp

import "encoding/binary"

const (
	rtoNoDelay = 30
	rtoMin     = 100
	rtoDefault = 200
	rtoMax     = 60000

	askSend = 1
	askTell = 2

	wndSnd = 32
	wndRcv = 128

	mtuDefault      = 1400
	intervalDefault = 100
	deadLinkDefault = 20
	threshInit      = 2
	threshMin       = 2
	probeInit       = 7000
	probeLimit      = 120000
	fastackLimit    = 5
)

// Output 输出回调
//
// data 指向引擎内部缓冲区，回调返回后会被复用，需要保留时必须复制。
type Output func(data []byte)

type ackItem struct {
	sn uint32
	ts uint32
}

// KCP ARQ 引擎
type KCP struct {
	conv uint32
	mtu  uint32
	mss  uint32
	dead bool

	sndUna, sndNxt, rcvNxt uint32
	ssthresh               uint32
	rxRttval, rxSrtt       int32
	rxRto, rxMinrto        uint32

	sndWnd, rcvWnd, rmtWnd, cwnd uint32
	probe                        uint32

	current, interval, tsFlush uint32
	xmit                       uint32
	nodelay                    uint32
	updated                    bool

	tsProbe, probeWait uint32
	deadLink           uint32
	incr               uint32

	fastresend int32
	fastlimit  int32
	nocwnd     bool

	sndQueue []segment
	rcvQueue []segment
	sndBuf   []segment
	rcvBuf   []segment
	acklist  []ackItem

	buffer []byte
	output Output
}

// New 创建引擎
func New(conv uint32, output Output) *KCP {
	k := &KCP{
		conv:      conv,
		sndWnd:    wndSnd,
		rcvWnd:    wndRcv,
		rmtWnd:    wndRcv,
		mtu:       mtuDefault,
		mss:       mtuDefault - Overhead,
		rxRto:     rtoDefault,
		rxMinrto:  rtoMin,
		interval:  intervalDefault,
		tsFlush:   intervalDefault,
		ssthresh:  threshInit,
		fastlimit: fastackLimit,
		deadLink:  deadLinkDefault,
		output:    output,
	}
	k.buffer = make([]byte, (k.mtu+Overhead)*3)
	return k
}

// Conv 返回会话标识
func (k *KCP) Conv() uint32 { return k.conv }

// Dead 报告某个分片的重传次数是否已达到死链阈值
func (k *KCP) Dead() bool { return k.dead }

// SetDeadLink 设置死链重传阈值
func (k *KCP) SetDeadLink(n uint32) {
	if n > 0 {
		k.deadLink = n
	}
}

// ============================================================================
// 接收
// ============================================================================

// PeekSize 返回下一条完整消息的长度，没有完整消息时返回 -1
func (k *KCP) PeekSize() int {
	if len(k.rcvQueue) == 0 {
		return -1
	}
	seg := &k.rcvQueue[0]
	if seg.frg == 0 {
		return len(seg.data)
	}
	if len(k.rcvQueue) < int(seg.frg)+1 {
		return -1
	}

	length := 0
	for i := range k.rcvQueue {
		length += len(k.rcvQueue[i].data)
		if k.rcvQueue[i].frg == 0 {
			break
		}
	}
	return length
}

// Recv 把下一条完整消息复制到 buf
func (k *KCP) Recv(buf []byte) (int, error) {
	peek := k.PeekSize()
	if peek < 0 {
		return 0, ErrNoData
	}
	if peek > len(buf) {
		return 0, ErrBufferTooSmall
	}

	fastRecover := uint32(len(k.rcvQueue)) >= k.rcvWnd

	n, count := 0, 0
	for i := range k.rcvQueue {
		seg := &k.rcvQueue[i]
		n += copy(buf[n:], seg.data)
		count++
		if seg.frg == 0 {
			break
		}
	}
	k.rcvQueue = removeFront(k.rcvQueue, count)
	k.moveToRcvQueue()

	if uint32(len(k.rcvQueue)) < k.rcvWnd && fastRecover {
		// 窗口重新打开，主动通告对端
		k.probe |= askTell
	}
	return n, nil
}

// moveToRcvQueue 把 rcvBuf 中连续的分片移入 rcvQueue
func (k *KCP) moveToRcvQueue() {
	count := 0
	for i := range k.rcvBuf {
		seg := &k.rcvBuf[i]
		if seg.sn != k.rcvNxt || uint32(len(k.rcvQueue)+count) >= k.rcvWnd {
			break
		}
		count++
		k.rcvNxt++
	}
	if count > 0 {
		k.rcvQueue = append(k.rcvQueue, k.rcvBuf[:count]...)
		k.rcvBuf = removeFront(k.rcvBuf, count)
	}
}

// ============================================================================
// 发送
// ============================================================================

// Send 把一条消息切分为分片放入发送队列
func (k *KCP) Send(data []byte) error {
	count := 1
	if len(data) > int(k.mss) {
		count = (len(data) + int(k.mss) - 1) / int(k.mss)
	}
	if count >= wndRcv {
		return ErrMessageTooLarge
	}

	for i := 0; i < count; i++ {
		size := min(len(data), int(k.mss))
		seg := segment{
			data: append([]byte(nil), data[:size]...),
			frg:  uint8(count - i - 1),
		}
		k.sndQueue = append(k.sndQueue, seg)
		data = data[size:]
	}
	return nil
}

// WaitSnd 返回尚未被确认的分片数
func (k *KCP) WaitSnd() int {
	return len(k.sndBuf) + len(k.sndQueue)
}

// ============================================================================
// 输入
// ============================================================================

// Input 处理一个入站数据报
//
// 数据报可以包含多个分片；末尾不足一个分片头的字节被忽略。
func (k *KCP) Input(data []byte) error {
	if len(data) < Overhead {
		return ErrTruncated
	}

	prevUna := k.sndUna
	var maxack, latestTs uint32
	flag := false

	for len(data) >= Overhead {
		conv := binary.LittleEndian.Uint32(data)
		cmd := data[4]
		frg := data[5]
		wnd := binary.LittleEndian.Uint16(data[6:])
		ts := binary.LittleEndian.Uint32(data[8:])
		sn := binary.LittleEndian.Uint32(data[12:])
		una := binary.LittleEndian.Uint32(data[16:])
		length := binary.LittleEndian.Uint32(data[20:])
		data = data[Overhead:]

		if conv != k.conv {
			return ErrConvMismatch
		}
		if uint32(len(data)) < length {
			return ErrTruncated
		}
		if cmd != cmdPush && cmd != cmdAck && cmd != cmdWask && cmd != cmdWins {
			return ErrInvalidCommand
		}

		k.rmtWnd = uint32(wnd)
		k.parseUna(una)
		k.shrinkBuf()

		switch cmd {
		case cmdAck:
			if rtt := timediff(k.current, ts); rtt >= 0 {
				k.updateAck(rtt)
			}
			k.parseAck(sn)
			k.shrinkBuf()
			if !flag {
				flag = true
				maxack, latestTs = sn, ts
			} else if timediff(sn, maxack) > 0 {
				maxack, latestTs = sn, ts
			}

		case cmdPush:
			if timediff(sn, k.rcvNxt+k.rcvWnd) < 0 {
				k.acklist = append(k.acklist, ackItem{sn: sn, ts: ts})
				if timediff(sn, k.rcvNxt) >= 0 {
					k.parseData(segment{
						conv: conv,
						cmd:  cmd,
						frg:  frg,
						wnd:  wnd,
						ts:   ts,
						sn:   sn,
						una:  una,
						data: append([]byte(nil), data[:length]...),
					})
				}
			}

		case cmdWask:
			k.probe |= askTell

		case cmdWins:
		}

		data = data[length:]
	}

	if flag {
		k.parseFastack(maxack, latestTs)
	}

	if timediff(k.sndUna, prevUna) > 0 && k.cwnd < k.rmtWnd {
		mss := k.mss
		if k.cwnd < k.ssthresh {
			k.cwnd++
			k.incr += mss
		} else {
			if k.incr < mss {
				k.incr = mss
			}
			k.incr += (mss*mss)/k.incr + mss/16
			if (k.cwnd+1)*mss <= k.incr {
				k.cwnd = (k.incr + mss - 1) / max(mss, 1)
			}
		}
		if k.cwnd > k.rmtWnd {
			k.cwnd = k.rmtWnd
			k.incr = k.rmtWnd * mss
		}
	}
	return nil
}

func (k *KCP) updateAck(rtt int32) {
	if k.rxSrtt == 0 {
		k.rxSrtt = rtt
		k.rxRttval = rtt / 2
	} else {
		delta := rtt - k.rxSrtt
		if delta < 0 {
			delta = -delta
		}
		k.rxRttval = (3*k.rxRttval + delta) / 4
		k.rxSrtt = (7*k.rxSrtt + rtt) / 8
		if k.rxSrtt < 1 {
			k.rxSrtt = 1
		}
	}
	rto := uint32(k.rxSrtt) + max(k.interval, uint32(4*k.rxRttval))
	k.rxRto = bound(k.rxMinrto, rto, rtoMax)
}

func (k *KCP) shrinkBuf() {
	if len(k.sndBuf) > 0 {
		k.sndUna = k.sndBuf[0].sn
	} else {
		k.sndUna = k.sndNxt
	}
}

func (k *KCP) parseAck(sn uint32) {
	if timediff(sn, k.sndUna) < 0 || timediff(sn, k.sndNxt) >= 0 {
		return
	}
	for i := range k.sndBuf {
		seg := &k.sndBuf[i]
		if sn == seg.sn {
			k.sndBuf = append(k.sndBuf[:i], k.sndBuf[i+1:]...)
			break
		}
		if timediff(sn, seg.sn) < 0 {
			break
		}
	}
}

func (k *KCP) parseUna(una uint32) {
	count := 0
	for i := range k.sndBuf {
		if timediff(una, k.sndBuf[i].sn) > 0 {
			count++
		} else {
			break
		}
	}
	if count > 0 {
		k.sndBuf = removeFront(k.sndBuf, count)
	}
}

func (k *KCP) parseFastack(sn, ts uint32) {
	if timediff(sn, k.sndUna) < 0 || timediff(sn, k.sndNxt) >= 0 {
		return
	}
	for i := range k.sndBuf {
		seg := &k.sndBuf[i]
		if timediff(sn, seg.sn) < 0 {
			break
		}
		if sn != seg.sn && timediff(ts, seg.ts) >= 0 {
			seg.fastack++
		}
	}
}

func (k *KCP) parseData(newseg segment) {
	sn := newseg.sn
	if timediff(sn, k.rcvNxt+k.rcvWnd) >= 0 || timediff(sn, k.rcvNxt) < 0 {
		return
	}

	insertAt := 0
	repeat := false
	for i := len(k.rcvBuf) - 1; i >= 0; i-- {
		seg := &k.rcvBuf[i]
		if seg.sn == sn {
			repeat = true
			break
		}
		if timediff(sn, seg.sn) > 0 {
			insertAt = i + 1
			break
		}
	}

	if !repeat {
		k.rcvBuf = append(k.rcvBuf, segment{})
		copy(k.rcvBuf[insertAt+1:], k.rcvBuf[insertAt:])
		k.rcvBuf[insertAt] = newseg
	}
	k.moveToRcvQueue()
}

// ============================================================================
// 刷新与计时
// ============================================================================

func (k *KCP) wndUnused() uint16 {
	if uint32(len(k.rcvQueue)) < k.rcvWnd {
		return uint16(k.rcvWnd - uint32(len(k.rcvQueue)))
	}
	return 0
}

// Flush 以 current 为当前时间立即输出待发送的确认与数据
//
// 在第一次 Update 之前调用无效。
func (k *KCP) Flush(current uint32) {
	if !k.updated {
		return
	}
	k.current = current
	k.flush()
}

func (k *KCP) flush() {
	current := k.current
	buf := k.buffer
	ptr := 0

	emit := func(need int) {
		if ptr+need > int(k.mtu) {
			k.output(buf[:ptr])
			ptr = 0
		}
	}

	seg := segment{conv: k.conv, cmd: cmdAck, wnd: k.wndUnused(), una: k.rcvNxt}

	for _, ack := range k.acklist {
		emit(Overhead)
		seg.sn, seg.ts = ack.sn, ack.ts
		ptr += seg.encode(buf[ptr:])
	}
	k.acklist = k.acklist[:0]

	// 远端窗口为 0 时周期性探测
	if k.rmtWnd == 0 {
		if k.probeWait == 0 {
			k.probeWait = probeInit
			k.tsProbe = current + k.probeWait
		} else if timediff(current, k.tsProbe) >= 0 {
			if k.probeWait < probeInit {
				k.probeWait = probeInit
			}
			k.probeWait += k.probeWait / 2
			if k.probeWait > probeLimit {
				k.probeWait = probeLimit
			}
			k.tsProbe = current + k.probeWait
			k.probe |= askSend
		}
	} else {
		k.tsProbe = 0
		k.probeWait = 0
	}

	seg.sn, seg.ts = 0, 0
	if k.probe&askSend != 0 {
		seg.cmd = cmdWask
		emit(Overhead)
		ptr += seg.encode(buf[ptr:])
	}
	if k.probe&askTell != 0 {
		seg.cmd = cmdWins
		emit(Overhead)
		ptr += seg.encode(buf[ptr:])
	}
	k.probe = 0

	cwnd := min(k.sndWnd, k.rmtWnd)
	if !k.nocwnd {
		cwnd = min(k.cwnd, cwnd)
	}

	for timediff(k.sndNxt, k.sndUna+cwnd) < 0 && len(k.sndQueue) > 0 {
		newseg := k.sndQueue[0]
		k.sndQueue = removeFront(k.sndQueue, 1)

		newseg.conv = k.conv
		newseg.cmd = cmdPush
		newseg.wnd = seg.wnd
		newseg.ts = current
		newseg.sn = k.sndNxt
		newseg.una = k.rcvNxt
		newseg.resendts = current
		newseg.rto = k.rxRto
		newseg.fastack = 0
		newseg.xmit = 0
		k.sndNxt++
		k.sndBuf = append(k.sndBuf, newseg)
	}

	resent := uint32(k.fastresend)
	if k.fastresend <= 0 {
		resent = 0xffffffff
	}
	rtomin := k.rxRto >> 3
	if k.nodelay != 0 {
		rtomin = 0
	}

	lost, change := false, false
	for i := range k.sndBuf {
		s := &k.sndBuf[i]
		needsend := false

		switch {
		case s.xmit == 0:
			needsend = true
			s.xmit++
			s.rto = k.rxRto
			s.resendts = current + s.rto + rtomin

		case timediff(current, s.resendts) >= 0:
			needsend = true
			s.xmit++
			k.xmit++
			if k.nodelay == 0 {
				s.rto += max(s.rto, k.rxRto)
			} else {
				step := s.rto
				if k.nodelay >= 2 {
					step = k.rxRto
				}
				s.rto += step / 2
			}
			s.resendts = current + s.rto
			lost = true

		case s.fastack >= resent:
			if s.xmit <= uint32(k.fastlimit) || k.fastlimit <= 0 {
				needsend = true
				s.xmit++
				s.fastack = 0
				s.resendts = current + s.rto
				change = true
			}
		}

		if needsend {
			s.ts = current
			s.wnd = seg.wnd
			s.una = k.rcvNxt

			emit(Overhead + len(s.data))
			ptr += s.encode(buf[ptr:])
			ptr += copy(buf[ptr:], s.data)

			if s.xmit >= k.deadLink {
				k.dead = true
			}
		}
	}

	if ptr > 0 {
		k.output(buf[:ptr])
	}

	if change {
		inflight := k.sndNxt - k.sndUna
		k.ssthresh = max(inflight/2, threshMin)
		k.cwnd = k.ssthresh + resent
		k.incr = k.cwnd * k.mss
	}
	if lost {
		k.ssthresh = max(cwnd/2, threshMin)
		k.cwnd = 1
		k.incr = k.mss
	}
	if k.cwnd < 1 {
		k.cwnd = 1
		k.incr = k.mss
	}
}

// Update 推进引擎时钟，到达刷新时间时执行 Flush
func (k *KCP) Update(current uint32) {
	k.current = current
	if !k.updated {
		k.updated = true
		k.tsFlush = current
	}

	slap := timediff(current, k.tsFlush)
	if slap >= 10000 || slap < -10000 {
		k.tsFlush = current
		slap = 0
	}
	if slap >= 0 {
		k.tsFlush += k.interval
		if timediff(current, k.tsFlush) >= 0 {
			k.tsFlush = current + k.interval
		}
		k.flush()
	}
}

// Check 返回下一次需要调用 Update 的时间
func (k *KCP) Check(current uint32) uint32 {
	if !k.updated {
		return current
	}

	tsFlush := k.tsFlush
	if d := timediff(current, tsFlush); d >= 10000 || d < -10000 {
		tsFlush = current
	}
	if timediff(current, tsFlush) >= 0 {
		return current
	}

	tmFlush := timediff(tsFlush, current)
	tmPacket := int32(0x7fffffff)
	for i := range k.sndBuf {
		diff := timediff(k.sndBuf[i].resendts, current)
		if diff <= 0 {
			return current
		}
		tmPacket = min(tmPacket, diff)
	}

	minimal := uint32(min(tmPacket, tmFlush))
	if minimal >= k.interval {
		minimal = k.interval
	}
	return current + minimal
}

// ============================================================================
// 参数
// ============================================================================

// SetMtu 设置 MTU
func (k *KCP) SetMtu(mtu int) error {
	if mtu < 50 || mtu < Overhead {
		return ErrInvalidMTU
	}
	k.buffer = make([]byte, (mtu+Overhead)*3)
	k.mtu = uint32(mtu)
	k.mss = k.mtu - Overhead
	return nil
}

// WndSize 设置发送与接收窗口（<= 0 表示不修改）
func (k *KCP) WndSize(snd, rcv int) {
	if snd > 0 {
		k.sndWnd = uint32(snd)
	}
	if rcv > 0 {
		k.rcvWnd = max(uint32(rcv), wndRcv)
	}
}

// NoDelay 设置时延参数（< 0 表示不修改）
//
// nodelay 非 0 启用快速 RTO；interval 为内部刷新间隔（毫秒）；resend 为快速重传阈值；
// nc 非 0 关闭拥塞控制。
func (k *KCP) NoDelay(nodelay, interval, resend, nc int) {
	if nodelay >= 0 {
		k.nodelay = uint32(nodelay)
		if nodelay != 0 {
			k.rxMinrto = rtoNoDelay
		} else {
			k.rxMinrto = rtoMin
		}
	}
	if interval >= 0 {
		k.interval = bound(10, uint32(interval), 5000)
	}
	if resend >= 0 {
		k.fastresend = int32(resend)
	}
	if nc >= 0 {
		k.nocwnd = nc != 0
	}
}

func removeFront(q []segment, n int) []segment {
	rest := copy(q, q[n:])
	for i := rest; i < len(q); i++ {
		q[i] = segment{}
	}
	return q[:rest]
}
