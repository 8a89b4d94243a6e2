// Package metrics defines the Prometheus instrumentation surface for
// zenlogd: pipeline throughput, queue depth, and per-sink outcomes.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_records_processed_total",
			Help: "Total number of records handed to the dispatch loop",
		},
		[]string{"pipeline"},
	)

	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_records_dropped_total",
			Help: "Total number of records dropped before reaching a sink",
		},
		[]string{"pipeline", "reason"},
	)

	SinkHandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_sink_handled_total",
			Help: "Total number of records handled by a sink",
		},
		[]string{"sink_type", "status"},
	)

	PipelineQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zenlogd_pipeline_queue_depth",
			Help: "Current number of records buffered in a pipeline's inbound channel",
		},
		[]string{"pipeline"},
	)

	PipelineQueueCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zenlogd_pipeline_queue_capacity",
			Help: "Configured capacity of a pipeline's inbound channel",
		},
		[]string{"pipeline"},
	)

	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_source_errors_total",
			Help: "Total number of source-level decode/read errors",
		},
		[]string{"source_type"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zenlogd_component_health",
			Help: "Health of a named component (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component_type", "component_name"},
	)

	KafkaMessagesProducedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_kafka_messages_produced_total",
			Help: "Total number of messages produced to Kafka",
		},
		[]string{"topic", "status"},
	)

	KafkaProducerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_kafka_producer_errors_total",
			Help: "Total number of Kafka producer errors",
		},
		[]string{"topic"},
	)

	FileSinkReopensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_file_sink_reopens_total",
			Help: "Total number of file sink cache reopen events",
		},
		[]string{"sink_name"},
	)

	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenlogd_reloads_total",
			Help: "Total number of runtime reload attempts",
		},
		[]string{"result"},
	)

	ProcessRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zenlogd_process_rss_bytes",
		Help: "Resident set size of the zenlogd process, in bytes",
	})

	ProcessOpenFDs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zenlogd_process_open_fds",
		Help: "Number of open file descriptors held by the zenlogd process",
	})
)

var registerOnce sync.Once

// Registered is a no-op call site that forces this package's promauto
// registrations to run before internal/health mounts the HTTP handler; safe
// to call multiple times.
func Registered() {
	registerOnce.Do(func() {})
}
