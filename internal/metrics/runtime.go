package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"steward/internal/action"
)

const runtimeMetricsFileName = "runtime_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000,
}

// RuntimeSnapshot aggregates mediated action metrics for one installation.
type RuntimeSnapshot struct {
	UpdatedAt time.Time   `json:"updated_at"`
	Actions   ActionStats `json:"actions"`
	Prompts   PromptStats `json:"prompts"`
}

// ActionStats tracks execution outcomes.
type ActionStats struct {
	Total             int64 `json:"total"`
	Failures          int64 `json:"failures"`
	Timeouts          int64 `json:"timeouts"`
	Denials           int64 `json:"denials"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// FailureRatio returns failures/total in [0,1].
func (a ActionStats) FailureRatio() float64 {
	if a.Total <= 0 {
		return 0
	}
	return float64(a.Failures) / float64(a.Total)
}

// AvgLatencyMs returns average execution latency in milliseconds.
func (a ActionStats) AvgLatencyMs() float64 {
	if a.Total <= 0 {
		return 0
	}
	return float64(a.TotalLatencyMs) / float64(a.Total)
}

// PromptStats tracks approval prompt traffic.
type PromptStats struct {
	Asked        int64 `json:"asked"`
	Approved     int64 `json:"approved"`
	AutoApproved int64 `json:"auto_approved"`
}

// HasData reports whether anything was recorded yet.
func (s RuntimeSnapshot) HasData() bool {
	return s.Actions.Total > 0 || s.Prompts.Asked > 0 || s.Prompts.AutoApproved > 0
}

// RuntimeMetrics records and persists runtime metrics.
type RuntimeMetrics struct {
	path string

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a recorder rooted at <stateDir>/runtime_metrics.json.
func NewRuntimeMetrics(stateDir string) *RuntimeMetrics {
	return &RuntimeMetrics{
		path:    runtimeMetricsPath(stateDir),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// RecordAction updates execution metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordAction(outcome action.Outcome) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()
	latencyMs := outcome.Duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Actions.Total++
	m.snap.Actions.TotalLatencyMs += latencyMs
	m.snap.Actions.LastLatencyMs = latencyMs
	if latencyMs > m.snap.Actions.MaxLatencyMs {
		m.snap.Actions.MaxLatencyMs = latencyMs
	}
	switch outcome.Status {
	case action.StatusFailed:
		m.snap.Actions.Failures++
	case action.StatusTimedOut:
		m.snap.Actions.Timeouts++
	case action.StatusDenied:
		m.snap.Actions.Denials++
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Actions.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Actions.Total)

	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordPrompt updates approval prompt metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordPrompt(decision action.Decision) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()

	m.mu.Lock()
	m.snap.UpdatedAt = now
	if decision.Auto {
		if decision.Approved {
			m.snap.Prompts.AutoApproved++
		}
	} else {
		m.snap.Prompts.Asked++
		if decision.Approved {
			m.snap.Prompts.Approved++
		}
	}
	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// ReadRuntimeSnapshot reads the persisted snapshot from the state dir.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(stateDir string) (RuntimeSnapshot, error) {
	path := runtimeMetricsPath(stateDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(stateDir string) string {
	return filepath.Join(stateDir, runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

// p95ProxyFromBuckets returns the upper bound of the bucket holding the 95th
// percentile sample. A proxy, not an exact percentile.
func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative >= target {
			if i < len(latencyBucketUpperBoundsMs) {
				return latencyBucketUpperBoundsMs[i]
			}
			break
		}
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}
