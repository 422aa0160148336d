// Package system exposes runtime introspection data as one-shot block
// sources with fixed schemas.
package system

import (
	"encoding/json"
	"runtime"

	"github.com/segmentio/parquet-go"

	"github.com/YimingQiao/databend/block"
	"github.com/YimingQiao/databend/pipeline"
)

// NewAllocStatsSource produces a single-row block with one column,
// "statistics", holding the full allocator state as JSON.
func NewAllocStatsSource() *pipeline.OneBlockSource {
	return pipeline.NewOneBlockSource("system.alloc_stats", allocStatsBlock)
}

// NewAllocStatsTotalsSource produces a {name, value} block with one row per
// allocator total.
func NewAllocStatsTotalsSource() *pipeline.OneBlockSource {
	return pipeline.NewOneBlockSource("system.alloc_stats_totals", allocStatsTotalsBlock)
}

func allocStatsBlock() (*block.Block, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	buf, err := json.Marshal(&stats)
	if err != nil {
		return nil, err
	}
	return block.New(
		[]string{"statistics"},
		[][]parquet.Value{{parquet.ByteArrayValue(buf)}},
	), nil
}

func allocStatsTotalsBlock() (*block.Block, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	totals := []struct {
		name  string
		value uint64
	}{
		{"allocated", stats.HeapAlloc},
		{"active", stats.HeapInuse},
		{"metadata", stats.MSpanInuse + stats.MCacheInuse + stats.GCSys},
		{"mapped", stats.HeapSys},
		{"resident", stats.Sys},
		{"retained", stats.HeapReleased},
	}

	names := make([]parquet.Value, 0, len(totals))
	values := make([]parquet.Value, 0, len(totals))
	for _, total := range totals {
		names = append(names, parquet.ByteArrayValue([]byte(total.name)))
		values = append(values, parquet.Int64Value(int64(total.value)))
	}
	return block.New(
		[]string{"name", "value"},
		[][]parquet.Value{names, values},
	), nil
}
