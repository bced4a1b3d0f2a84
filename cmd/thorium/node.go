package main

import (
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // profiling endpoints, parity with Warren's cmd/warren
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/thorium/pkg/log"
	"github.com/cuemby/thorium/pkg/metrics"
	"github.com/cuemby/thorium/pkg/node"
	"github.com/cuemby/thorium/pkg/security"
	"github.com/cuemby/thorium/pkg/storage"
	"github.com/cuemby/thorium/pkg/transport"
	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a Thorium node",
	Long: `Run a Thorium node: the worker pool, the pluggable transport, and,
when a data directory and Raft bind address are configured, the
Raft-backed global actor-name directory shared with the rest of the
cluster.`,
	RunE: runNode,
}

func init() {
	nodeCmd.Flags().String("name", "", "Node name, unique across the cluster (required)")
	nodeCmd.Flags().String("config", "", "Cluster topology file (yaml); when set, peer addresses and thread count come from it")
	nodeCmd.Flags().Int("threads", 4, "Number of worker threads")
	nodeCmd.Flags().String("listen", "127.0.0.1:7100", "Transport listen address")
	nodeCmd.Flags().String("data-dir", "./thorium-data", "Data directory for the name directory store and Raft logs")
	nodeCmd.Flags().String("raft-bind-addr", "127.0.0.1:7300", "Address for Raft communication")
	nodeCmd.Flags().Bool("standalone", false, "Run without a Raft-backed name directory (single-process mode)")
	nodeCmd.Flags().String("cluster-id", "thorium", "Cluster identifier the encryption key protecting the CA root is derived from")
	nodeCmd.Flags().Bool("tls", false, "Require mutual TLS between nodes' transport connections")
	nodeCmd.Flags().StringSlice("tls-dns-names", []string{"localhost"}, "DNS names for this node's transport certificate")
	nodeCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	nodeCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
	nodeCmd.Flags().Bool("print-load", false, "Periodically print per-worker load to stdout")
	nodeCmd.Flags().Bool("print-memory-usage", false, "Periodically print memory pool block counts to stdout")
	nodeCmd.Flags().Bool("print-counters", false, "Periodically print routing/drop counters to stdout")
	_ = nodeCmd.MarkFlagRequired("name")
}

func runNode(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	configPath, _ := cmd.Flags().GetString("config")
	threads, _ := cmd.Flags().GetInt("threads")
	listenAddr, _ := cmd.Flags().GetString("listen")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	standalone, _ := cmd.Flags().GetBool("standalone")
	clusterID, _ := cmd.Flags().GetString("cluster-id")
	useTLS, _ := cmd.Flags().GetBool("tls")
	dnsNames, _ := cmd.Flags().GetStringSlice("tls-dns-names")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")
	printLoad, _ := cmd.Flags().GetBool("print-load")
	printMemoryUsage, _ := cmd.Flags().GetBool("print-memory-usage")
	printCounters, _ := cmd.Flags().GetBool("print-counters")

	// THORIUM_NODE_USE_DETERMINISTIC_ACTOR_NAMES mirrors Warren's
	// env-override pattern in cmd/warren: an env var read at CLI-parse
	// time rather than a flag, for settings that are almost always left
	// at their default and mainly exist for test harnesses.
	deterministicNames := os.Getenv("THORIUM_NODE_USE_DETERMINISTIC_ACTOR_NAMES") == "true"

	peers := map[string]string{}
	if configPath != "" {
		topology, err := loadClusterConfig(configPath)
		if err != nil {
			return err
		}
		self, ok := topology.self(name)
		if !ok {
			return fmt.Errorf("node %q not found in cluster config %s", name, configPath)
		}
		peers = topology.peers(name)
		if self.TransportAddr != "" {
			listenAddr = self.TransportAddr
		}
		if self.RaftBindAddr != "" {
			raftBindAddr = self.RaftBindAddr
		}
		if self.Threads > 0 {
			threads = self.Threads
		}
	}

	logger := log.WithComponent("cmd").With().Str("node", name).Logger()
	logger.Info().Int("threads", threads).Str("listen", listenAddr).Msg("starting thorium node")

	var store storage.Store
	var ca *security.CertAuthority
	if !standalone {
		boltStore, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open data directory: %w", err)
		}
		defer boltStore.Close()
		store = boltStore
	}

	transportCfg := transport.Config{
		ListenAddr: listenAddr,
		NodeID:     name,
	}

	if useTLS {
		if store == nil {
			return fmt.Errorf("--tls requires a data directory (remove --standalone)")
		}
		key := security.DeriveKeyFromClusterID(clusterID)
		if err := security.SetClusterEncryptionKey(key); err != nil {
			return fmt.Errorf("failed to set cluster encryption key: %w", err)
		}
		ca = security.NewCertAuthority(store)
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize certificate authority: %w", err)
		}
		transportCfg.TLS = true
		transportCfg.CA = ca
		transportCfg.DNSNames = dnsNames
		if host, _, err := net.SplitHostPort(listenAddr); err == nil {
			if ip := net.ParseIP(host); ip != nil {
				transportCfg.IPAddresses = []net.IP{ip}
			}
		}
	}

	tr, err := transport.New(transportCfg)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	nodeCfg := node.Config{
		Name:               name,
		Peers:              peers,
		Threads:            threads,
		DeterministicNames: deterministicNames,
		Transport:          tr,
		Store:              store,
		DataDir:            dataDir,
		RaftBindAddr:       raftBindAddr,
	}
	if standalone {
		nodeCfg.Store = nil
	}

	n, err := node.New(nodeCfg)
	if err != nil {
		return fmt.Errorf("failed to construct node: %w", err)
	}

	if err := n.Run(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("transport", true, "started")
	metrics.RegisterComponent("workers", true, "started")
	metrics.RegisterComponent("raft", true, boolMessage(standalone, "standalone, no name directory", "bootstrapped"))

	collector := metrics.NewCollector(n)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if pprofEnabled {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics and health endpoints listening")

	stopPrinters := startStatPrinters(n, printLoad, printMemoryUsage, printCounters)
	defer stopPrinters()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")
	n.BroadcastStop()
	if err := n.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("node shutdown reported an error")
	}
	_ = metricsServer.Close()

	return nil
}

func boolMessage(v bool, whenTrue, whenFalse string) string {
	if v {
		return whenTrue
	}
	return whenFalse
}
