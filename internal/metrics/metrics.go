// Package metrics holds the Prometheus instruments shared by the queue store
// and its worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one queue instance.
type Metrics struct {
	// Store metrics
	AppendedRecords  prometheus.Counter
	AppendErrors     prometheus.Counter
	AppendedBytes    prometheus.Counter
	ReadErrors       prometheus.Counter
	SegmentRotations prometheus.Counter
	SegmentsRemoved  *prometheus.CounterVec // action: delete, archive
	CleanupErrors    prometheus.Counter
	Marker           prometheus.Gauge
	WritePointer     prometheus.Gauge

	// Worker metrics
	DeliveredBatches prometheus.Counter
	DeliveredRecords prometheus.Counter
	ListenerFailures prometheus.Counter
	WorkerStarts     prometheus.Counter
	WorkerStops      prometheus.Counter
	WorkerRunning    prometheus.Gauge
	DeliveryDuration prometheus.Histogram
}

// New registers the queue metrics on registerer, labelled with the queue name.
// A nil registerer gets a private registry, which keeps several queues in one
// process from colliding.
func New(registerer prometheus.Registerer, queue string) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"queue": queue}, registerer))

	return &Metrics{
		AppendedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_appended_records_total",
			Help: "Total number of records appended to the store",
		}),
		AppendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_append_errors_total",
			Help: "Total number of failed appends",
		}),
		AppendedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_appended_bytes_total",
			Help: "Total number of bytes written to segments",
		}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_read_errors_total",
			Help: "Total number of failed batch reads",
		}),
		SegmentRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_segment_rotations_total",
			Help: "Total number of segment rotations",
		}),
		SegmentsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dataqueue_segments_removed_total",
			Help: "Total number of consumed segments deleted or archived",
		}, []string{"action"}),
		CleanupErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_cleanup_errors_total",
			Help: "Total number of failed segment deletions or archives",
		}),
		Marker: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataqueue_marker",
			Help: "Number of records consumed",
		}),
		WritePointer: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataqueue_write_pointer",
			Help: "Number of records appended over the queue lifetime",
		}),

		DeliveredBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_delivered_batches_total",
			Help: "Total number of batches handed to the listener",
		}),
		DeliveredRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_delivered_records_total",
			Help: "Total number of records handed to the listener",
		}),
		ListenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_listener_failures_total",
			Help: "Total number of batches the listener failed or panicked on",
		}),
		WorkerStarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_worker_starts_total",
			Help: "Total number of worker launches",
		}),
		WorkerStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataqueue_worker_stops_total",
			Help: "Total number of worker exits",
		}),
		WorkerRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataqueue_worker_running",
			Help: "1 while a worker is running",
		}),
		DeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataqueue_delivery_duration_seconds",
			Help:    "Time spent in the listener per batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
