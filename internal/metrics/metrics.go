// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesCapturedTotal counts frames handed to a capture consumer
	FramesCapturedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_frames_captured_total",
			Help: "Total number of frames captured",
		},
		[]string{"interface"},
	)

	// BytesCapturedTotal counts captured frame bytes
	BytesCapturedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_bytes_captured_total",
			Help: "Total number of frame bytes captured",
		},
		[]string{"interface"},
	)

	// CaptureErrorsTotal counts receive errors by kind (errno name, timeout, closed)
	CaptureErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_capture_errors_total",
			Help: "Total number of receive errors",
		},
		[]string{"interface", "kind"},
	)

	// FramesTransmittedTotal counts frames written to the wire
	FramesTransmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_frames_transmitted_total",
			Help: "Total number of frames transmitted",
		},
		[]string{"interface"},
	)

	// BytesTransmittedTotal counts transmitted frame bytes, header included
	BytesTransmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_bytes_transmitted_total",
			Help: "Total number of frame bytes transmitted",
		},
		[]string{"interface"},
	)

	// TransmitErrorsTotal counts failed transmissions
	TransmitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherlab_transmit_errors_total",
			Help: "Total number of transmit errors",
		},
		[]string{"interface"},
	)

	// FrameSizeBytes tracks the on-wire size of captured and transmitted frames
	FrameSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etherlab_frame_size_bytes",
			Help:    "Size of frames in bytes, CRC excluded",
			Buckets: []float64{60, 128, 256, 512, 1024, 1514, 9018},
		},
		[]string{"interface", "direction"},
	)
)

// Direction label values for FrameSizeBytes
const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)
