package main

import (
	"fmt"
	"time"

	"github.com/cuemby/thorium/pkg/node"
)

// startStatPrinters starts one ticker goroutine per enabled -print-* flag
// and returns a func that stops them all, the same start/stop-by-closed-
// channel shape as pkg/metrics.Collector.
func startStatPrinters(n *node.Node, printLoad, printMemoryUsage, printCounters bool) func() {
	if !printLoad && !printMemoryUsage && !printCounters {
		return func() {}
	}

	stopCh := make(chan struct{})
	ticker := time.NewTicker(5 * time.Second)

	go func() {
		for {
			select {
			case <-ticker.C:
				if printLoad {
					printNodeLoad(n)
				}
				if printMemoryUsage {
					printMemoryPools(n)
				}
				if printCounters {
					printNodeCounters(n)
				}
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(stopCh) }
}

func printNodeLoad(n *node.Node) {
	stats := n.Stats()
	fmt.Printf("[load] live_actors=%d leader=%v worker_load=%v\n", stats.LiveActors, stats.IsLeader, stats.WorkerLoad)
}

func printMemoryPools(n *node.Node) {
	fmt.Printf("[memory] actor_blocks=%d inbound_blocks=%d outbound_blocks=%d\n",
		n.ActorPool.BlockCount(), n.InboundPool.BlockCount(), n.OutboundPool.BlockCount())
}

func printNodeCounters(n *node.Node) {
	stats := n.Stats()
	fmt.Printf("[counters] live_actors=%d workers=%d\n", stats.LiveActors, n.WorkerCount())
}
