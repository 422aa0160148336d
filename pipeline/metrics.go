package pipeline

import "github.com/prometheus/client_golang/prometheus"

// ProgressCollector exposes a Progress as prometheus counters.
type ProgressCollector struct {
	progress *Progress

	rowsDesc  *prometheus.Desc
	bytesDesc *prometheus.Desc
}

func NewProgressCollector(progress *Progress) *ProgressCollector {
	return &ProgressCollector{
		progress: progress,
		rowsDesc: prometheus.NewDesc(
			"scan_rows_total",
			"Total number of rows deserialized by the scan pipeline.",
			nil, nil,
		),
		bytesDesc: prometheus.NewDesc(
			"scan_bytes_total",
			"Total number of bytes deserialized by the scan pipeline.",
			nil, nil,
		),
	}
}

func (c *ProgressCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rowsDesc
	ch <- c.bytesDesc
}

func (c *ProgressCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.rowsDesc, prometheus.CounterValue, float64(c.progress.Rows()))
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(c.progress.Bytes()))
}
