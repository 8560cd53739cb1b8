package tabstego

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamirms/tabstego/internal/scan"
)

// Metrics groups the counters Encode and Decode update when passed via
// WithMetrics.
type Metrics struct {
	Encodes         *prometheus.CounterVec // by result: ok, capacity, error
	PacketsEmbedded prometheus.Counter
	Decodes         *prometheus.CounterVec // by result: success, failure, error
	Probes          prometheus.Counter
	ValidPackets    prometheus.Counter
	Rejected        *prometheus.CounterVec // by reason: uncorrectable, checksum, header
	CorrectedBytes  prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Encodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabstego",
			Name:      "encodes_total",
			Help:      "Encode calls by result.",
		}, []string{"result"}),
		PacketsEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabstego",
			Name:      "packets_embedded_total",
			Help:      "Packets written into row order.",
		}),
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabstego",
			Name:      "decodes_total",
			Help:      "Decode calls by result.",
		}, []string{"result"}),
		Probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabstego",
			Subsystem: "scan",
			Name:      "probes_total",
			Help:      "Window offsets examined.",
		}),
		ValidPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabstego",
			Subsystem: "scan",
			Name:      "valid_packets_total",
			Help:      "Packets accepted by the fountain decoder.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabstego",
			Subsystem: "scan",
			Name:      "rejected_total",
			Help:      "Candidate windows discarded, by reason.",
		}, []string{"reason"}),
		CorrectedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabstego",
			Subsystem: "scan",
			Name:      "corrected_bytes_total",
			Help:      "Bytes repaired by Reed-Solomon in accepted packets.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Encodes, m.PacketsEmbedded, m.Decodes, m.Probes, m.ValidPackets, m.Rejected, m.CorrectedBytes)
	}
	return m
}

func (m *Metrics) observeEncode(result string, packets int) {
	if m == nil {
		return
	}
	m.Encodes.WithLabelValues(result).Inc()
	m.PacketsEmbedded.Add(float64(packets))
}

func (m *Metrics) observeDecode(result string, res *scan.Result) {
	if m == nil {
		return
	}
	m.Decodes.WithLabelValues(result).Inc()
	if res == nil {
		return
	}
	m.Probes.Add(float64(res.Probes))
	m.ValidPackets.Add(float64(res.ValidPackets))
	m.CorrectedBytes.Add(float64(res.Corrected))
	m.Rejected.WithLabelValues("uncorrectable").Add(float64(res.Rejected.Uncorrectable))
	m.Rejected.WithLabelValues("checksum").Add(float64(res.Rejected.Checksum))
	m.Rejected.WithLabelValues("header").Add(float64(res.Rejected.Header))
}
