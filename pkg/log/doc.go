// Package log configures the global zerolog logger and derives
// component, resource and worker loggers from it.
package log
