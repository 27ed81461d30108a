// Package relay answers status queries for resources, asking the
// resource's worker when one is running and synthesizing a degraded
// report when none is.
package relay
