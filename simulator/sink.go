package simulator

import (
	"context"
	"sync/atomic"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/internal/queue"
	"github.com/openlis/astmsim/logger"
)

// DefaultSinkCapacity bounds how many received messages may wait for
// bridge delivery before new ones are dropped.
const DefaultSinkCapacity = 64

// Sink consumes finalized inbound messages from sessions and forwards them
// to the bridge. Without a bridge client it logs each message instead.
//
// Handle never blocks: messages land on a concurrent queue and a forwarder
// task started by Attach drains it, so slow bridge deliveries cannot stall
// the session goroutines that produce messages.
type Sink struct {
	pending  queue.Queue
	notify   chan struct{}
	bridge   *BridgeClient
	capacity int
	dropped  atomic.Uint64

	ctx    context.Context
	logger logger.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithSinkCapacity bounds the number of messages waiting for delivery.
func WithSinkCapacity(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewSink creates a sink delivering through bridge. A nil bridge makes the
// sink log-only.
func NewSink(bridge *BridgeClient, opts ...SinkOption) *Sink {
	s := &Sink{
		pending:  queue.NewLockFreeQueue(),
		notify:   make(chan struct{}, 1),
		bridge:   bridge,
		capacity: DefaultSinkCapacity,
		ctx:      context.Background(),
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Attach starts the sink's forwarder task on mgr. Messages handed to the
// sink before Attach stay queued until the forwarder starts.
func (s *Sink) Attach(ctx context.Context, mgr *TaskManager) error {
	s.ctx = ctx
	s.logger = mgr.logger

	return mgr.StartWake("bridgeForwarder", s.notify, s.drain, nil)
}

// Handle accepts one finalized inbound message. It satisfies
// lis1.MessageHandler and is safe for concurrent use across sessions.
func (s *Sink) Handle(msg *astm.Message) {
	if s.pending.Length() >= s.capacity {
		s.dropped.Add(1)
		s.logger.Warn("simulator: delivery backlog full, dropping message",
			"capacity", s.capacity, "dropped", s.dropped.Load())

		return
	}

	s.pending.Enqueue(msg)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns how many messages currently wait for delivery.
func (s *Sink) Pending() int {
	return s.pending.Length()
}

// Dropped returns how many messages were discarded on a full backlog.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// drain empties the pending queue, delivering each message in arrival order.
func (s *Sink) drain() bool {
	for {
		select {
		case <-s.ctx.Done():
			return false
		default:
		}

		item := s.pending.Dequeue()
		if item == nil {
			return true
		}

		msg, ok := item.(*astm.Message)
		if !ok {
			continue
		}
		s.deliver(msg)
	}
}

func (s *Sink) deliver(msg *astm.Message) {
	if s.bridge == nil {
		s.logger.Info("simulator: message received", "records", msg.Len())
		for _, line := range msg.Lines() {
			s.logger.Debug("simulator: record", "text", line)
		}

		return
	}

	if err := s.bridge.Deliver(s.ctx, bridgeText(msg)); err != nil {
		// Delivery is fire-and-forget; the message is gone after one attempt.
		s.logger.Error("simulator: bridge delivery failed", "error", err)
	}
}
