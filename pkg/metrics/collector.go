package metrics

import (
	"strconv"
	"time"
)

// NodeStats is the narrow view a Collector needs from a running node — kept
// as a plain struct rather than an interface on *node.Node so pkg/metrics
// never imports pkg/node (which itself imports pkg/metrics).
type NodeStats struct {
	LiveActors int
	IsLeader   bool
	WorkerLoad []int
}

// StatsSource is implemented by the node and polled periodically.
type StatsSource interface {
	Stats() NodeStats
}

// Collector periodically snapshots a node's live state into the
// package-level Prometheus gauges, the way Warren's Collector polled its
// manager for cluster-wide gauges.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.source.Stats()

	ActorsLive.Set(float64(stats.LiveActors))

	if stats.IsLeader {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	for id, load := range stats.WorkerLoad {
		WorkerLoad.WithLabelValues(strconv.Itoa(id)).Set(float64(load))
	}
}
