package server

import (
	"log/slog"
	"sync/atomic"

	"github.com/NicolasHaas/chatrelay/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

// Broadcaster fans messages out to every registered peer.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
	workers  int
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster that sends to at most workers peers
// at a time.
func NewBroadcaster(reg *Registry, metrics *Metrics, workers int, log *slog.Logger) *Broadcaster {
	if workers < 1 {
		workers = 1
	}
	return &Broadcaster{
		registry: reg,
		metrics:  metrics,
		workers:  workers,
		log:      log,
	}
}

// Broadcast delivers msg to every peer registered at the moment of the call,
// the sender included. The registry lock is released before any write.
// Failed sends are logged and skipped. Returns the number of peers reached
// once every send has finished.
func (b *Broadcaster) Broadcast(msg *protocol.Message) int {
	payload, err := protocol.Encode(msg)
	if err != nil {
		b.log.Error("broadcast encode failed", "type", msg.Type, "err", err)
		return 0
	}

	peers := b.registry.Snapshot()
	b.metrics.Broadcasts.Add(1)

	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := p.Send(payload); err != nil {
				b.sendFailed(p, msg.Type, err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := delivered.Load()
	b.metrics.Deliveries.Add(n)
	return int(n)
}

// Send delivers msg to a single peer.
func (b *Broadcaster) Send(p *Peer, msg *protocol.Message) error {
	if err := p.SendMessage(msg); err != nil {
		b.sendFailed(p, msg.Type, err)
		return err
	}
	b.metrics.Deliveries.Add(1)
	return nil
}

func (b *Broadcaster) sendFailed(p *Peer, typ protocol.Type, err error) {
	b.metrics.SendFailures.Add(1)
	if isClosedErr(err) {
		b.log.Debug("send to closed peer", "conn", p.ID(), "type", typ)
		return
	}
	b.log.Warn("send failed", "conn", p.ID(), "remote", p.RemoteAddr(), "type", typ, "err", err)
}
