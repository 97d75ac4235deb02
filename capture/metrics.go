package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Frames       prometheus.Counter
	PayloadBytes prometheus.Counter
	PollErrors   prometheus.Counter
	PacketRSSI   prometheus.Gauge
	PacketSNR    prometheus.Gauge

	Records      prometheus.Counter
	SkippedBytes prometheus.Counter
}

// NewMetrics registers capture metrics with reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasniffer",
			Name:      "frames_captured_total",
			Help:      "Frames read from the radio and written to the sink.",
		}),
		PayloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasniffer",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes drained from the radio.",
		}),
		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasniffer",
			Name:      "poll_errors_total",
			Help:      "Radio or sink errors seen while polling.",
		}),
		PacketRSSI: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lorasniffer",
			Name:      "last_packet_rssi_dbm",
			Help:      "RSSI of the most recent frame.",
		}),
		PacketSNR: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lorasniffer",
			Name:      "last_packet_snr_db",
			Help:      "SNR of the most recent frame.",
		}),
		Records: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasniffer",
			Name:      "records_decoded_total",
			Help:      "Stream records decoded on the host.",
		}),
		SkippedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasniffer",
			Name:      "skipped_bytes_total",
			Help:      "Stream bytes discarded while resynchronising.",
		}),
	}
}
