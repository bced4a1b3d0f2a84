/*
Command thorium runs a single Thorium node: cmd/thorium node --threads 8
--print-load --print-counters --config cluster.yaml.

Cluster topology — which nodes exist, their transport addresses, and
per-node thread counts — comes from a yaml.v3 file rather than per-peer
flags once more than one node is involved (config.go). Logging, the
metrics/health HTTP surface, and the cobra flag/subcommand layout follow
Warren's cmd/warren: a persistent --log-level/--log-json pair initialized
via cobra.OnInitialize, and a background HTTP server exposing /metrics,
/health, /ready, and /live alongside optional pprof endpoints.
*/
package main
