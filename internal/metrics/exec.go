// Package metrics provides Prometheus metrics for process executions.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/procexec/internal/events"
)

var (
	execStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "started_total",
		Help:      "Processes launched",
	})

	execKilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "killed_total",
		Help:      "Kill requests by reason",
	}, []string{"reason"})

	execFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "finished_total",
		Help:      "Finished executions by outcome",
	}, []string{"outcome"})

	execDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "duration_seconds",
		Help:      "Wall time from launch to end of join",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	execRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "running",
		Help:      "Processes launched and not yet joined",
	})

	execOutputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procexec",
		Subsystem: "exec",
		Name:      "output_lines_total",
		Help:      "Captured output lines by stream",
	}, []string{"stream"})

	// Local cache for per-job API access.
	jobCache   = make(map[string]*JobMetrics)
	jobCacheMu sync.RWMutex
)

// JobMetrics holds totals for one job name.
type JobMetrics struct {
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastOutcome  string        `json:"last_outcome"`
	LastExitCode int           `json:"last_exit_code"`
	LastDuration time.Duration `json:"last_duration"`
}

// RecordStarted counts a launched process.
func RecordStarted() {
	execStarted.Inc()
	execRunning.Inc()
}

// RecordKilled counts a kill request.
func RecordKilled(reason string) {
	execKilled.WithLabelValues(reason).Inc()
}

// RecordFinished counts a finished execution. Launch failures (Pid 0)
// were never counted as running.
func RecordFinished(ev events.ExecFinishedEvent) {
	if ev.Pid > 0 {
		execRunning.Dec()
	}
	execFinished.WithLabelValues(ev.Outcome).Inc()
	execDuration.Observe(ev.DurationSec)
	execOutputLines.WithLabelValues("stdout").Add(float64(ev.StdoutLines))
	execOutputLines.WithLabelValues("stderr").Add(float64(ev.StderrLines))

	if ev.Job == "" {
		return
	}
	updateCache(ev.Job, func(m *JobMetrics) {
		m.Runs++
		if ev.Outcome != events.OutcomeSuccess {
			m.Failures++
		}
		m.LastOutcome = ev.Outcome
		m.LastExitCode = ev.ExitCode
		m.LastDuration = time.Duration(ev.DurationSec * float64(time.Second))
	})
}

// Subscribe feeds bus events into the collectors. Returns an unsubscribe function.
func Subscribe(bus *events.Bus) func() {
	unsubStarted := bus.Subscribe(func(events.ExecStartedEvent) {
		RecordStarted()
	})
	unsubKilled := bus.Subscribe(func(ev events.ExecKilledEvent) {
		RecordKilled(ev.Reason)
	})
	unsubFinished := bus.Subscribe(func(ev events.ExecFinishedEvent) {
		RecordFinished(ev)
	})

	return func() {
		unsubStarted()
		unsubKilled()
		unsubFinished()
	}
}

// GetJobMetrics returns totals for a job, or nil if it never ran.
func GetJobMetrics(job string) *JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	if m, ok := jobCache[job]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllJobMetrics returns totals for every job that ran.
func GetAllJobMetrics() map[string]*JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	result := make(map[string]*JobMetrics, len(jobCache))
	for name, m := range jobCache {
		dup := *m
		result[name] = &dup
	}
	return result
}

// DeleteJobMetrics drops the cached totals for a job.
func DeleteJobMetrics(job string) {
	jobCacheMu.Lock()
	delete(jobCache, job)
	jobCacheMu.Unlock()
}

func updateCache(job string, update func(*JobMetrics)) {
	jobCacheMu.Lock()
	defer jobCacheMu.Unlock()
	m, ok := jobCache[job]
	if !ok {
		m = &JobMetrics{}
		jobCache[job] = m
	}
	update(m)
}
