package lis1

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for LIS1-A sessions. A server
// passes one instance to every session it creates so the counters aggregate
// across connections. Metrics can be used as the value of a prometheus
// CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// FrameRecvCount indicates the number of frames accepted.
	FrameRecvCount atomic.Uint64
	// FrameSendCount indicates the number of frames transmitted, retransmissions included.
	FrameSendCount atomic.Uint64
	// DuplicateFrameCount indicates the number of duplicate frames acknowledged without appending.
	DuplicateFrameCount atomic.Uint64

	// NakSentCount indicates the number of NAKs sent rejecting received frames.
	NakSentCount atomic.Uint64
	// NakRecvCount indicates the number of rejections received for transmitted frames.
	NakRecvCount atomic.Uint64

	// MsgRecvCount indicates the number of finalized inbound messages.
	MsgRecvCount atomic.Uint64
	// MsgSendCount indicates the number of fully transmitted outbound messages.
	MsgSendCount atomic.Uint64
	// QueryRecvCount indicates the number of inbound messages classified as field queries.
	QueryRecvCount atomic.Uint64

	// ContentionCount indicates the number of simultaneous-ENQ contention events.
	ContentionCount atomic.Uint64
	// InterruptCount indicates the number of receiver interrupts honored mid-send.
	InterruptCount atomic.Uint64
	// TimeoutCount indicates the number of expired protocol deadlines.
	TimeoutCount atomic.Uint64
	// AbortCount indicates the number of sessions aborted after exhausting the retransmission budget.
	AbortCount atomic.Uint64
}

func (m *SessionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *SessionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *SessionMetrics) incDuplicateFrameCount() {
	m.DuplicateFrameCount.Add(1)
}

func (m *SessionMetrics) incNakSentCount() {
	m.NakSentCount.Add(1)
}

func (m *SessionMetrics) incNakRecvCount() {
	m.NakRecvCount.Add(1)
}

func (m *SessionMetrics) incMsgRecvCount() {
	m.MsgRecvCount.Add(1)
}

func (m *SessionMetrics) incMsgSendCount() {
	m.MsgSendCount.Add(1)
}

func (m *SessionMetrics) incQueryRecvCount() {
	m.QueryRecvCount.Add(1)
}

func (m *SessionMetrics) incContentionCount() {
	m.ContentionCount.Add(1)
}

func (m *SessionMetrics) incInterruptCount() {
	m.InterruptCount.Add(1)
}

func (m *SessionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *SessionMetrics) incAbortCount() {
	m.AbortCount.Add(1)
}
