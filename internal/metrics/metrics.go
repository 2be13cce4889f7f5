// Package metrics exposes Prometheus metrics for the API and the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to.
type Recorder interface {
	RecordRequest(method, path string, status int, duration time.Duration)
	RecordStatusChange(status bool)
	RecordRowsInitialized(count int64)
	RecordSyncPush(accepted, conflicts int)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	statusChanges   *prometheus.CounterVec
	rowsInitialized prometheus.Counter
	syncAccepted    prometheus.Counter
	syncConflicts   prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habits_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "habits_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habits_completion_status_changes_total",
			Help: "Completion rows set, by resulting status",
		}, []string{"status"}),
		rowsInitialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habits_completion_rows_initialized_total",
			Help: "Completion rows created by day initialization",
		}),
		syncAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habits_sync_rows_accepted_total",
			Help: "Rows applied from client sync pushes",
		}),
		syncConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habits_sync_rows_conflicted_total",
			Help: "Rows rejected from client sync pushes because the server copy was newer",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestDuration,
		c.statusChanges,
		c.rowsInitialized,
		c.syncAccepted,
		c.syncConflicts,
	)

	return c
}

// RecordRequest records one served HTTP request.
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStatusChange records a completion set to status.
func (c *Collector) RecordStatusChange(status bool) {
	c.statusChanges.WithLabelValues(strconv.FormatBool(status)).Inc()
}

// RecordRowsInitialized records rows created by a day initialization.
func (c *Collector) RecordRowsInitialized(count int64) {
	c.rowsInitialized.Add(float64(count))
}

// RecordSyncPush records the outcome of one sync push.
func (c *Collector) RecordSyncPush(accepted, conflicts int) {
	c.syncAccepted.Add(float64(accepted))
	c.syncConflicts.Add(float64(conflicts))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordStatusChange(bool)                          {}
func (Nop) RecordRowsInitialized(int64)                      {}
func (Nop) RecordSyncPush(int, int)                          {}
