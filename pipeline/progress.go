package pipeline

import "sync/atomic"

// ProgressValues is one increment of scan progress.
type ProgressValues struct {
	Rows  int
	Bytes int
}

// Progress accumulates row and byte counts across concurrently running
// processors. Increments are atomic per field; readers observe totals
// without any ordering guarantee between the two counters.
type Progress struct {
	rows  atomic.Int64
	bytes atomic.Int64
}

func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) Incr(v ProgressValues) {
	p.rows.Add(int64(v.Rows))
	p.bytes.Add(int64(v.Bytes))
}

func (p *Progress) Rows() int64  { return p.rows.Load() }
func (p *Progress) Bytes() int64 { return p.bytes.Load() }
