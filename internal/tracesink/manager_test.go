package tracesink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/chainflow/pkg/models"
)

type fakeSink struct {
	name string

	mu       sync.Mutex
	received []models.TraceRecord
	err      error
	panicOn  bool
	done     chan struct{}
}

func newFakeSink(name string, n int) *fakeSink {
	return &fakeSink{name: name, done: make(chan struct{}, n)}
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(ctx context.Context, record models.TraceRecord) error {
	defer func() { f.done <- struct{}{} }()
	if f.panicOn {
		panic("boom")
	}
	f.mu.Lock()
	f.received = append(f.received, record)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSink) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func waitDone(t *testing.T, done chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sink dispatch")
		}
	}
}

func TestManager_RegisterAndAppendFansOut(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	sink := newFakeSink("a", 1)
	require.NoError(t, mgr.Register(sink, nil))
	assert.Equal(t, 1, mgr.Count())

	mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindEvent, ID: "e1", RunID: "run-1", Seq: 1})

	waitDone(t, sink.done, 1)
	assert.Equal(t, 1, sink.recordCount())
}

func TestManager_RegisterRejectsDuplicateName(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	require.NoError(t, mgr.Register(newFakeSink("a", 0), nil))
	err := mgr.Register(newFakeSink("a", 0), nil)
	assert.Error(t, err)
}

func TestManager_Unregister(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	require.NoError(t, mgr.Register(newFakeSink("a", 0), nil))
	require.NoError(t, mgr.Unregister("a"))
	assert.Equal(t, 0, mgr.Count())
	assert.Error(t, mgr.Unregister("a"))
}

func TestManager_FilterExcludesNonMatchingRecords(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	sink := newFakeSink("a", 1)
	require.NoError(t, mgr.Register(sink, NewKindFilter(models.TraceKindRoot)))

	mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindEvent, ID: "e1", RunID: "run-1"})
	mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindRoot, ID: "r1", RunID: "run-1"})

	waitDone(t, sink.done, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.recordCount())
	assert.Equal(t, models.TraceKindRoot, sink.received[0].Kind)
}

func TestManager_SinkPanicIsRecovered(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	sink := newFakeSink("panicky", 1)
	sink.panicOn = true
	require.NoError(t, mgr.Register(sink, nil))

	mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindEvent, ID: "e1", RunID: "run-1"})
	waitDone(t, sink.done, 1)
	// No assertion beyond "this didn't crash the test binary".
}

func TestManager_SinkErrorIsLoggedNotPropagated(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	sink := newFakeSink("failing", 1)
	sink.err = errors.New("write failed")
	require.NoError(t, mgr.Register(sink, nil))

	mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindEvent, ID: "e1", RunID: "run-1"})
	waitDone(t, sink.done, 1)
}

func TestManager_DropsWhenBufferFull(t *testing.T) {
	mgr := NewManager(WithBufferSize(1))
	defer mgr.Close()

	// No sinks registered; just exercise the bounded-channel path
	// directly by filling it faster than the drain loop can empty it.
	for i := 0; i < 50; i++ {
		mgr.Append(context.Background(), models.TraceRecord{Kind: models.TraceKindEvent, ID: "e", RunID: "run-1", Seq: int64(i)})
	}
	// Give the drain loop a moment; some amount of drops is expected
	// under a buffer of 1 with no consumer-side backpressure relief.
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, mgr.Dropped(), int64(0))
}
