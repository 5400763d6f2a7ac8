package heartboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/heartboard/telemetry"
)

// scriptedBridge answers with the scripted responses in order, then repeats
// the last one.
type scriptedBridge struct {
	mu    sync.Mutex
	steps []bridgeStep
	n     int
}

type bridgeStep struct {
	code int
	body string
}

func (b *scriptedBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	step := b.steps[min(b.n, len(b.steps)-1)]
	b.n++
	b.mu.Unlock()

	w.WriteHeader(step.code)
	_, _ = io.WriteString(w, step.body)
}

func newScriptedBridge(t *testing.T, steps ...bridgeStep) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(&scriptedBridge{steps: steps})
	t.Cleanup(ts.Close)
	return ts
}

// runUntil starts hb and stops it once cond holds or the deadline passes.
func runUntil(t *testing.T, hb *HeartBoard, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Start(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}
	if !cond() {
		t.Fatal("condition not reached before deadline")
	}
}

func TestWithReadingCallback_InvokedOnEveryPoll(t *testing.T) {
	ts := newBridge(t, `{"status":2,"hr":72}`)

	var calls atomic.Int32
	hb := newTestBoard(t, ts.URL, 19201, WithReadingCallback(func(u Update) {
		calls.Add(1)
	}))

	runUntil(t, hb, func() bool { return calls.Load() >= 3 })
}

func TestWithReadingCallback_ReceivesReading(t *testing.T) {
	ts := newBridge(t, `{"status":2,"hr":81}`)

	var (
		mu    sync.Mutex
		first *Update
	)
	hb := newTestBoard(t, ts.URL, 19202, WithReadingCallback(func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		if first == nil {
			first = &u
		}
	}))

	runUntil(t, hb, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return first != nil
	})

	mu.Lock()
	defer mu.Unlock()
	if first.Current == nil {
		t.Fatal("Current = nil")
	}
	if v, ok := first.Current.Value(); !ok || v != 81 {
		t.Errorf("Value() = %d, %v, want 81", v, ok)
	}
	if first.Hint != HintHeartRate {
		t.Errorf("Hint = %q, want %q", first.Hint, HintHeartRate)
	}
	if first.Seq != 1 || first.RequestID == "" {
		t.Errorf("Seq = %d, RequestID = %q", first.Seq, first.RequestID)
	}
}

func TestWithTransitionCallback_OnlyOnStateChange(t *testing.T) {
	ts := newScriptedBridge(t,
		bridgeStep{200, `{"status":0}`},
		bridgeStep{200, `{"status":0}`},
		bridgeStep{200, `{"status":1,"hr":0}`},
		bridgeStep{200, `{"status":2,"hr":70}`},
		bridgeStep{200, `{"status":2,"hr":71}`},
		bridgeStep{500, `{}`},
	)

	var (
		mu          sync.Mutex
		transitions []string
		readings    atomic.Int32
	)
	hb := newTestBoard(t, ts.URL, 19203,
		WithTransitionCallback(func(u Update) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, stateName(u.Current))
		}),
		WithReadingCallback(func(Update) { readings.Add(1) }),
	)

	runUntil(t, hb, func() bool { return readings.Load() >= 7 })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"source_absent", "collecting_data", "reporting_data", "disconnected"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCallback_PanicRecovered(t *testing.T) {
	ts := newBridge(t, `{"status":2,"hr":60}`)

	var after atomic.Int32
	hb := newTestBoard(t, ts.URL, 19204,
		WithReadingCallback(func(Update) { panic("boom") }),
		WithReadingCallback(func(Update) { after.Add(1) }),
	)

	runUntil(t, hb, func() bool { return after.Load() >= 2 })
}

func TestWithErrorReporter_ReportsEachFailureOnce(t *testing.T) {
	ts := newScriptedBridge(t,
		bridgeStep{200, `{"status":1}`},
		bridgeStep{503, `unavailable`},
		bridgeStep{200, `{"status":0}`},
	)

	var (
		mu    sync.Mutex
		kinds []telemetry.ErrorKind
	)
	var polls atomic.Int32
	hb := newTestBoard(t, ts.URL, 19205,
		WithErrorReporter(func(kind telemetry.ErrorKind, message string) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, kind)
		}),
		WithReadingCallback(func(Update) { polls.Add(1) }),
	)

	runUntil(t, hb, func() bool { return polls.Load() >= 4 })

	mu.Lock()
	defer mu.Unlock()
	want := []telemetry.ErrorKind{telemetry.KindMissingField, telemetry.KindUnexpectedStatus}
	if len(kinds) != len(want) {
		t.Fatalf("reported = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("report %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestWithErrorReporter_PanicRecovered(t *testing.T) {
	ts := newScriptedBridge(t, bridgeStep{500, ``})

	var polls atomic.Int32
	hb := newTestBoard(t, ts.URL, 19206,
		WithErrorReporter(func(telemetry.ErrorKind, string) { panic("reporter broke") }),
		WithReadingCallback(func(Update) { polls.Add(1) }),
	)

	runUntil(t, hb, func() bool { return polls.Load() >= 2 })
}

func TestActuator_DrivenOnlyWhenOutputChanges(t *testing.T) {
	ts := newScriptedBridge(t,
		bridgeStep{200, `{"status":1,"hr":0}`},
		bridgeStep{200, `{"status":1,"hr":0}`},
		bridgeStep{200, `{"status":2,"hr":70}`},
		bridgeStep{200, `{"status":2,"hr":70}`},
		bridgeStep{200, `{"status":2,"hr":74}`},
	)

	act := &recordingActuator{}
	var polls atomic.Int32
	hb := newTestBoard(t, ts.URL, 19207,
		WithActuator(act),
		WithReadingCallback(func(Update) { polls.Add(1) }),
	)

	runUntil(t, hb, func() bool { return polls.Load() >= 6 })

	calls, closed := act.snapshot()
	// collecting, reporting 70, reporting 74, then disconnected on shutdown
	if len(calls) != 4 {
		t.Fatalf("actuations = %d, want 4", len(calls))
	}
	if calls[0] == nil || calls[0].Status() != telemetry.CollectingData {
		t.Errorf("actuation 0 = %v, want collecting", calls[0])
	}
	if v, _ := calls[1].Value(); v != 70 {
		t.Errorf("actuation 1 bpm = %d, want 70", v)
	}
	if v, _ := calls[2].Value(); v != 74 {
		t.Errorf("actuation 2 bpm = %d, want 74", v)
	}
	if calls[3] != nil {
		t.Errorf("final actuation = %v, want disconnected", calls[3])
	}
	if closed != 1 {
		t.Errorf("actuator closed %d times, want 1", closed)
	}
}

func TestActuator_RetriedAfterFailure(t *testing.T) {
	ts := newBridge(t, `{"status":0}`)

	act := &recordingActuator{err: errors.New("plc offline")}
	var polls atomic.Int32
	hb := newTestBoard(t, ts.URL, 19208,
		WithActuator(act),
		WithReadingCallback(func(Update) { polls.Add(1) }),
	)

	runUntil(t, hb, func() bool { return polls.Load() >= 3 })

	calls, _ := act.snapshot()
	// the failed output is never acknowledged, so each poll retries it
	if len(calls) < 3 {
		t.Errorf("actuations = %d, want at least 3", len(calls))
	}
}
