package link

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metric interface {
	// DeletePartialMatch from prometheus.MetricVec
	DeletePartialMatch(prometheus.Labels) int
}

// PeerTracker remembers when each peer was last seen and drops the per peer
// metric series of peers that went quiet.
type PeerTracker struct {
	mtx        sync.Mutex
	peers      map[string]time.Time
	metrics    []Metric
	purgeAfter time.Duration
}

func NewPeerTracker(metrics []Metric, purgeAfter time.Duration) *PeerTracker {
	return &PeerTracker{
		peers:      make(map[string]time.Time),
		metrics:    metrics,
		purgeAfter: purgeAfter,
	}
}

// Run purges stale peers every interval until ctx is done.
func (p *PeerTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Purge(time.Now())
		}
	}
}

// Purge removes peers not seen since now minus the purge window.
func (p *PeerTracker) Purge(now time.Time) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var n int
	for peer, t := range p.peers {
		if now.Sub(t) < p.purgeAfter {
			continue
		}

		n++
		metricPeerPurges.Inc()
		delete(p.peers, peer)
		for _, metric := range p.metrics {
			metric.DeletePartialMatch(prometheus.Labels{"peer": peer})
		}
	}

	return n
}

func (p *PeerTracker) Seen(peer string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.peers[peer] = time.Now()
}

// Peers returns the last seen time of every tracked peer.
func (p *PeerTracker) Peers() map[string]time.Time {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	out := make(map[string]time.Time, len(p.peers))
	for k, v := range p.peers {
		out[k] = v
	}
	return out
}
