// Package poller implements the acquisition state machine for heartboard.
//
// This package is internal to heartboard. It decides when to issue the next
// telemetry request, runs the request off the caller's goroutine, and folds
// each outcome into a single atomically replaced [Snapshot].
//
// The main components are:
//
//   - [Client]: resty-based HTTP client with per-request timeouts
//   - [Poller]: tick-gated request dispatch, classification and state updates
//   - [Snapshot]: the current/previous reading pair seen by consumers
//
// The host drives the poller by calling [Poller.Tick] from its own loop at any
// frequency; Tick never blocks on the network. Users of the heartboard
// library should not need to interact with this package directly.
package poller
