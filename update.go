package heartboard

import (
	"time"

	"github.com/jpalmerr/heartboard/internal/poller"
	"github.com/jpalmerr/heartboard/internal/store"
	"github.com/jpalmerr/heartboard/telemetry"
)

// Update describes one completed poll, as delivered to callbacks.
type Update struct {
	// Current is the classified reading, nil when the poll failed.
	Current *telemetry.Reading

	// Previous is the reading before this poll, nil when it was absent.
	Previous *telemetry.Reading

	// Err is the classification or transport failure behind a nil Current.
	Err error

	// Hint is the display text for Current.
	Hint string

	// Latency is the request duration.
	Latency time.Duration

	// RequestID is sent as X-Request-ID and appears in debug logs.
	RequestID string

	// UpdatedAt is when the outcome was applied.
	UpdatedAt time.Time

	// Seq numbers applied polls from 1.
	Seq uint64
}

// Changed reports whether this update is a device state transition.
func (u Update) Changed() bool {
	return telemetry.Changed(u.Previous, u.Current)
}

func snapshotToUpdate(s poller.Snapshot) Update {
	return Update{
		Current:   s.Current,
		Previous:  s.Previous,
		Err:       s.Err,
		Hint:      Hint(s.Current),
		Latency:   s.Latency,
		RequestID: s.RequestID,
		UpdatedAt: s.UpdatedAt,
		Seq:       s.Seq,
	}
}

func snapshotToView(s poller.Snapshot) store.ReadingView {
	view := store.ReadingView{
		Connected:      s.Current != nil,
		Hint:           Hint(s.Current),
		UpdatedAt:      s.UpdatedAt,
		ResponseTimeMs: s.Latency.Milliseconds(),
		RequestID:      s.RequestID,
		Seq:            s.Seq,
	}

	if r := s.Current; r != nil {
		code := int(r.Status())
		checkedAt := r.CheckedAt()
		view.Status = r.Status().String()
		view.Code = &code
		view.CheckedAt = &checkedAt
		if v, ok := r.Value(); ok {
			view.Value = &v
		}
	}

	if s.Err != nil {
		kind := string(telemetry.KindOf(s.Err))
		msg := s.Err.Error()
		view.ErrorKind = &kind
		view.Error = &msg
	}
	return view
}
