package store

import "time"

// ReadingView is the projection of the latest poll served to HTTP consumers.
//
// It is decoupled from the poller's snapshot so the JSON surface can evolve
// independently of the acquisition types.
type ReadingView struct {
	// Connected is false when the latest poll produced no reading.
	Connected bool `json:"connected"`

	// Status is the device state name, e.g. "reporting_data".
	// Empty when not connected.
	Status string `json:"status"`

	// Code is the raw status code reported by the bridge.
	// nil when not connected.
	Code *int `json:"code"`

	// Value is the heart rate in bpm, present only while reporting.
	Value *int `json:"value"`

	// Hint is the display text for the current state.
	Hint string `json:"hint"`

	// CheckedAt is when the reading was classified.
	CheckedAt *time.Time `json:"checked_at"`

	// UpdatedAt is when the poll outcome was applied.
	UpdatedAt time.Time `json:"updated_at"`

	// ResponseTimeMs is the request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// RequestID correlates this view with the poller's log lines.
	RequestID string `json:"request_id"`

	// Seq is the poll sequence number, starting at 1.
	Seq uint64 `json:"seq"`

	// ErrorKind and Error describe the failure behind a disconnected view.
	ErrorKind *string `json:"error_kind"`
	Error     *string `json:"error"`
}

// Store defines storage and subscription for the latest reading view.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update replaces the latest view and notifies all subscribers.
	Update(view ReadingView)

	// Latest returns the most recent view, or false before the first poll.
	Latest() (ReadingView, bool)

	// Subscribe returns a buffered channel that receives every update.
	// Slow consumers may miss updates. Caller must call Unsubscribe when done.
	Subscribe() <-chan ReadingView

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ReadingView)
}
