package router

import (
	"sync"

	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
)

// Sender is a session that can queue an envelope for delivery.
type Sender interface {
	Name() string
	Send(env protocol.Envelope) error
}

// Bus fans envelopes out to every attached session.
type Bus struct {
	mu      sync.RWMutex
	members []Sender
	log     *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Attach adds s. Attaching the same sender twice is a no-op.
func (b *Bus) Attach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.members {
		if m == s {
			return
		}
	}
	b.members = append(b.members, s)
}

func (b *Bus) Detach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.members {
		if m == s {
			b.members = append(b.members[:i], b.members[i+1:]...)
			return
		}
	}
}

// Publish queues env on every member. A member that is offline or backed
// up misses the message; the error is logged and the rest still receive it.
func (b *Bus) Publish(env protocol.Envelope) {
	b.mu.RLock()
	members := append([]Sender(nil), b.members...)
	b.mu.RUnlock()

	for _, m := range members {
		if err := m.Send(env); err != nil {
			b.log.Debug("broadcast skipped session",
				zap.String("session", m.Name()),
				zap.String("event", env.Event),
				zap.Error(err))
		}
	}
}
