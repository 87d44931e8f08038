// Package metrics defines the Prometheus collectors botcore exposes as
// package-level vars, registered explicitly via Register().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "botcore_capture_sessions_started_total",
		Help: "Capture sessions started",
	})
	SessionsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "botcore_capture_sessions_succeeded_total",
		Help: "Capture sessions that reached stopped-success",
	})
	SessionsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "botcore_capture_sessions_failed_total",
		Help: "Capture sessions that reached stopped-failure",
	})
	CaptureDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "botcore_capture_duration_seconds",
		Help:    "Wall-clock duration of the capture subprocess",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12),
	})
	StreamFramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "botcore_stream_frames_dropped_total",
		Help: "PCM sample batches the streaming sink failed to accept",
	})
	PostProcessStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "botcore_postprocess_stage_duration_seconds",
		Help:    "Duration of each post-processing pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	PostProcessFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "botcore_postprocess_stage_failures_total",
		Help: "Post-processing stage failures",
	}, []string{"stage"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "botcore_uploads_total",
		Help: "Artifact uploads by kind and result",
	}, []string{"artifact", "result"})
	UploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "botcore_upload_duration_seconds",
		Help:    "Artifact upload duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"artifact"})
	CleanupStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "botcore_cleanup_step_duration_seconds",
		Help:    "Duration of each cleanup coordinator step",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
)

var registered bool

// Register registers all collectors with the default Prometheus registry.
// Safe to call once at process start; guarded so tests constructing multiple
// engines in the same process don't panic on double registration.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		SessionsStarted, SessionsSucceeded, SessionsFailed,
		CaptureDurationSeconds, StreamFramesDropped,
		PostProcessStageDuration, PostProcessFailures,
		UploadsTotal, UploadDuration, CleanupStepDuration,
	)
	registered = true
}
