package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtspview_build_info",
			Help: "Build information",
		},
		[]string{"date", "sha", "version"},
	)

	streamStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtspview_stream_starts_total",
			Help: "Transcoder launches by outcome",
		},
		[]string{"outcome"},
	)

	framesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtspview_frames_read_total",
			Help: "Complete frames read from the transcoder",
		},
	)

	queueFull = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtspview_queue_full_total",
			Help: "Frames the reader held back because the frame queue was full",
		},
	)

	partialBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtspview_partial_frame_bytes_total",
			Help: "Trailing bytes discarded when a session ended mid-frame",
		},
	)

	framesPresented = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtspview_frames_presented_total",
			Help: "Frames shown on the display surfaces",
		},
	)

	viewers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtspview_viewers",
			Help: "Connected WebRTC viewers",
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, streamStarts, framesRead, queueFull, partialBytes, framesPresented, viewers)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordStreamStart counts a transcoder launch.
func RecordStreamStart(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	streamStarts.WithLabelValues(outcome).Inc()
}

// RecordFrameRead counts a complete frame taken off the transcoder pipe.
func RecordFrameRead() {
	framesRead.Inc()
}

// RecordQueueFull counts a frame that had to wait for room in the queue.
func RecordQueueFull() {
	queueFull.Inc()
}

// RecordPartialBytes counts bytes of an incomplete trailing frame.
func RecordPartialBytes(n int) {
	partialBytes.Add(float64(n))
}

// RecordFramePresented counts a frame handed to the display surfaces.
func RecordFramePresented() {
	framesPresented.Inc()
}

// ViewerConnected increments the viewer gauge.
func ViewerConnected() {
	viewers.Inc()
}

// ViewerDisconnected decrements the viewer gauge.
func ViewerDisconnected() {
	viewers.Dec()
}
