// Package health provides reachability probes with retry thresholds.
// Workers use a TCPChecker to decide whether their peer is connected,
// which drives the complete/degraded status they report.
package health
