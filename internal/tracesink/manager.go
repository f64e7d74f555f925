package tracesink

import (
	"context"
	"fmt"
	"sync"

	"github.com/smilemakc/chainflow/internal/logger"
	"github.com/smilemakc/chainflow/pkg/models"
)

type registeredSink struct {
	sink   Sink
	filter Filter
}

// Manager buffers incoming TraceRecords on a bounded channel and fans
// each one out to every registered sink on its own goroutine, the way
// the teacher's ObserverManager notifies observers without blocking
// the caller. A full buffer drops the record rather than blocking the
// scheduler: per spec.md, a trace sink's absence (or overload) must
// never change engine semantics.
type Manager struct {
	mu    sync.RWMutex
	sinks []registeredSink

	logger *logger.Logger

	queue  chan queuedRecord
	closed chan struct{}
	wg     sync.WaitGroup

	dropped int64
}

type queuedRecord struct {
	ctx    context.Context
	record models.TraceRecord
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used to report sink errors/panics.
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithBufferSize sets the bounded ingestion channel's capacity.
func WithBufferSize(size int) ManagerOption {
	return func(m *Manager) {
		if size > 0 {
			m.queue = make(chan queuedRecord, size)
		}
	}
}

// NewManager creates a Manager and starts its background drain loop.
// Call Close to stop it.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger: logger.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.queue == nil {
		m.queue = make(chan queuedRecord, 256)
	}

	m.wg.Add(1)
	go m.drain()

	return m
}

// Register adds a sink, optionally narrowed by a Filter.
func (m *Manager) Register(sink Sink, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rs := range m.sinks {
		if rs.sink.Name() == sink.Name() {
			return fmt.Errorf("tracesink: sink %q already registered", sink.Name())
		}
	}
	m.sinks = append(m.sinks, registeredSink{sink: sink, filter: filter})
	return nil
}

// Unregister removes a sink by name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rs := range m.sinks {
		if rs.sink.Name() == name {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("tracesink: sink %q not found", name)
}

// Count returns the number of registered sinks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// Dropped returns how many records were discarded because the
// ingestion buffer was full.
func (m *Manager) Dropped() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}

// Append enqueues a record for async fan-out. Never blocks the
// caller: if the buffer is full the record is dropped and logged.
func (m *Manager) Append(ctx context.Context, record models.TraceRecord) {
	select {
	case m.queue <- queuedRecord{ctx: ctx, record: record}:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Warn("tracesink: buffer full, dropping record", "kind", string(record.Kind), "run_id", record.RunID)
		}
	}
}

// Close stops the drain loop once the buffer has drained and waits
// for any in-flight sink dispatches to finish.
func (m *Manager) Close() {
	close(m.closed)
	m.wg.Wait()
}

func (m *Manager) drain() {
	defer m.wg.Done()

	var dispatching sync.WaitGroup
	for {
		select {
		case qr := <-m.queue:
			dispatching.Add(1)
			go func() {
				defer dispatching.Done()
				m.dispatch(qr.ctx, qr.record)
			}()
		case <-m.closed:
			for {
				select {
				case qr := <-m.queue:
					m.dispatch(qr.ctx, qr.record)
				default:
					dispatching.Wait()
					return
				}
			}
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, record models.TraceRecord) {
	m.mu.RLock()
	sinks := make([]registeredSink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.RUnlock()

	for _, rs := range sinks {
		go m.writeOne(ctx, rs, record)
	}
}

func (m *Manager) writeOne(ctx context.Context, rs registeredSink, record models.TraceRecord) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error("tracesink: sink panicked", "sink", rs.sink.Name(), "panic", fmt.Sprintf("%v", r))
			}
		}
	}()

	if rs.filter != nil && !rs.filter.ShouldWrite(record) {
		return
	}

	if err := rs.sink.Write(ctx, record); err != nil {
		if m.logger != nil {
			m.logger.Error("tracesink: sink write failed", "sink", rs.sink.Name(), "error", err)
		}
	}
}
