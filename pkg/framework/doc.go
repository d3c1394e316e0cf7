// Package framework provides the plumbing to run nodes: background
// runners with error aggregation and a poller driving non-blocking tasks.
package framework
