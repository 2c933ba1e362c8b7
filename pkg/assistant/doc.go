// Package assistant provides the reconnecting websocket transport to the
// assistant backend.
//
// It owns a single live connection, retries failed connects with capped
// exponential backoff, and forwards inbound frames to replaceable
// callbacks.
package assistant
