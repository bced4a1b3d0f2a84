package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeSpec is one node's entry in a cluster topology file.
type NodeSpec struct {
	Name          string `yaml:"name"`
	TransportAddr string `yaml:"transport_addr"`
	RaftBindAddr  string `yaml:"raft_bind_addr"`
	Threads       int    `yaml:"threads"`
}

// ClusterConfig is a cluster topology file: node name, peer transport
// address, and thread count per node, mirroring Warren's practice of
// keeping cluster shape out of flags once more than a couple of nodes
// are involved.
type ClusterConfig struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

func loadClusterConfig(path string) (*ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster config: %w", err)
	}
	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cluster config: %w", err)
	}
	return &cfg, nil
}

// self returns the NodeSpec matching name.
func (c *ClusterConfig) self(name string) (*NodeSpec, bool) {
	for i := range c.Nodes {
		if c.Nodes[i].Name == name {
			return &c.Nodes[i], true
		}
	}
	return nil, false
}

// peers returns every other node's name mapped to its transport address,
// the shape pkg/node.Config.Peers wants.
func (c *ClusterConfig) peers(exclude string) map[string]string {
	peers := make(map[string]string, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == exclude {
			continue
		}
		peers[n.Name] = n.TransportAddr
	}
	return peers
}
