// Package resource holds the daemon's resource table: the configured
// resources in configuration order, each with its current role and
// worker handle. The table is fixed at startup and only the role state
// machine changes its entries.
package resource
