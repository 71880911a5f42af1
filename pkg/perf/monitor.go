// Package perf is the cross-cutting performance layer: operation timing with
// threshold monitoring, a TTL+LRU bounded cache, and keyed debounce/throttle
// helpers used by the storage and edit-session services.
package perf

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Metrics captures one bracketed unit of work.
type Metrics struct {
	OperationID string        `json:"operation_id"`
	Type        string        `json:"type"`
	Component   string        `json:"component,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	MemoryBytes uint64        `json:"memory_bytes"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`

	startAlloc uint64
}

// Monitor brackets operations with StartOperation/EndOperation and checks
// duration and memory deltas against configured thresholds. Breaches are
// observational: they emit events but never fail the operation.
type Monitor struct {
	mu        sync.RWMutex
	active    map[string]*Metrics
	completed []*Metrics

	durationThreshold time.Duration
	memoryThreshold   uint64
	maxRetained       int

	listeners *listenerSet
	logger    zerolog.Logger

	promOperations *prometheus.CounterVec
	promBreaches   prometheus.Counter
}

// NewMonitor creates a performance monitor.
func NewMonitor(options ...MonitorOption) *Monitor {
	m := &Monitor{
		active:            make(map[string]*Metrics),
		durationThreshold: 100 * time.Millisecond,
		memoryThreshold:   50 * 1024 * 1024,
		maxRetained:       500,
		logger:            zerolog.Nop(),
	}
	for _, option := range options {
		option(m)
	}
	m.listeners = newListenerSet(m.logger)
	return m
}

// registerCollectors wires the prometheus counters onto the given registerer.
func (m *Monitor) registerCollectors(reg prometheus.Registerer) {
	factory := promauto.With(reg)
	m.promOperations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tokencore_operations_total",
		Help: "Completed operations by type and outcome.",
	}, []string{"type", "outcome"})
	m.promBreaches = factory.NewCounter(prometheus.CounterOpts{
		Name: "tokencore_threshold_breaches_total",
		Help: "Operations that exceeded the duration or memory threshold.",
	})
}

// StartOperation begins timing a unit of work and returns its operation ID.
func (m *Monitor) StartOperation(opType, component string) string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := &Metrics{
		OperationID: uuid.NewString(),
		Type:        opType,
		Component:   component,
		StartTime:   time.Now(),
		startAlloc:  memStats.Alloc,
	}

	m.mu.Lock()
	m.active[metrics.OperationID] = metrics
	m.mu.Unlock()

	return metrics.OperationID
}

// EndOperation finalizes a started operation, records its duration and memory
// delta, and emits threshold events when configured limits are breached.
// Unknown operation IDs are ignored.
func (m *Monitor) EndOperation(operationID string, success bool, opErr error) *Metrics {
	m.mu.Lock()
	metrics, exists := m.active[operationID]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	delete(m.active, operationID)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics.EndTime = time.Now()
	metrics.Duration = metrics.EndTime.Sub(metrics.StartTime)
	if memStats.Alloc > metrics.startAlloc {
		metrics.MemoryBytes = memStats.Alloc - metrics.startAlloc
	}
	metrics.Success = success
	if opErr != nil {
		metrics.Error = opErr.Error()
	}

	m.completed = append(m.completed, metrics)
	if len(m.completed) > m.maxRetained {
		m.completed = m.completed[len(m.completed)-m.maxRetained:]
	}
	durationThreshold := m.durationThreshold
	memoryThreshold := m.memoryThreshold
	m.mu.Unlock()

	if m.promOperations != nil {
		outcome := "success"
		if !success {
			outcome = "error"
		}
		m.promOperations.WithLabelValues(metrics.Type, outcome).Inc()
	}

	if durationThreshold > 0 && metrics.Duration > durationThreshold {
		if m.promBreaches != nil {
			m.promBreaches.Inc()
		}
		m.logger.Warn().
			Str("operation", metrics.Type).
			Dur("duration", metrics.Duration).
			Msg("operation exceeded duration threshold")
		m.listeners.emit(EventThresholdExceeded, map[string]interface{}{
			"operation_id": metrics.OperationID,
			"type":         metrics.Type,
			"duration_ms":  metrics.Duration.Milliseconds(),
			"threshold_ms": durationThreshold.Milliseconds(),
		})
	}
	if memoryThreshold > 0 && metrics.MemoryBytes > memoryThreshold {
		if m.promBreaches != nil {
			m.promBreaches.Inc()
		}
		m.listeners.emit(EventMemoryWarning, map[string]interface{}{
			"operation_id": metrics.OperationID,
			"type":         metrics.Type,
			"memory_bytes": metrics.MemoryBytes,
		})
	}

	m.listeners.emit(EventOperationCompleted, map[string]interface{}{
		"operation_id": metrics.OperationID,
		"type":         metrics.Type,
		"success":      success,
	})

	return metrics
}

// Time runs fn as a single bracketed operation.
func (m *Monitor) Time(opType, component string, fn func() error) error {
	id := m.StartOperation(opType, component)
	err := fn()
	m.EndOperation(id, err == nil, err)
	return err
}

// AddListener subscribes to monitor events and returns a subscription ID.
func (m *Monitor) AddListener(fn func(Event)) int {
	return m.listeners.add(fn)
}

// RemoveListener drops a subscription.
func (m *Monitor) RemoveListener(id int) {
	m.listeners.remove(id)
}

// GetStatistics returns aggregate numbers over the retained operations.
func (m *Monitor) GetStatistics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totalDuration time.Duration
	var failures int
	byType := make(map[string]int)
	for _, op := range m.completed {
		totalDuration += op.Duration
		byType[op.Type]++
		if !op.Success {
			failures++
		}
	}

	stats := map[string]interface{}{
		"active_operations":    len(m.active),
		"completed_operations": len(m.completed),
		"failed_operations":    failures,
		"operations_by_type":   byType,
	}
	if len(m.completed) > 0 {
		stats["average_duration_ms"] = float64(totalDuration.Milliseconds()) / float64(len(m.completed))
	}
	return stats
}

// RecentOperations returns up to limit most-recent completed operations,
// newest last.
func (m *Monitor) RecentOperations(limit int) []*Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.completed) {
		limit = len(m.completed)
	}
	out := make([]*Metrics, limit)
	copy(out, m.completed[len(m.completed)-limit:])
	return out
}

// Reset discards all active and retained metrics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = make(map[string]*Metrics)
	m.completed = nil
}
