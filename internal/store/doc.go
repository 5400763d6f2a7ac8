// Package store holds the latest reading view for HTTP consumers.
//
// The poller's snapshot is the authoritative state; this package keeps a
// JSON-friendly projection of it and fans every update out to subscribers
// (the SSE handler). Sends are non-blocking, so a slow dashboard client
// misses intermediate updates instead of holding back the update path.
package store
