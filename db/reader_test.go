package db

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore/providers/filesystem"

	"github.com/YimingQiao/databend/dataset"
	"github.com/YimingQiao/databend/pipeline"
	"github.com/YimingQiao/databend/pqtest"
)

func testRows(seriesID int64, num int) []pqtest.Row {
	rows := make([]pqtest.Row, 0, num)
	for i := 0; i < num; i++ {
		rows = append(rows, pqtest.Row{
			SeriesID: seriesID + int64(i),
			Label:    fmt.Sprintf("label-%d", i%2),
			Value:    float64(i),
		})
	}
	return rows
}

func openTestReader(t *testing.T, batches [][]pqtest.Row) *FileReader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, pqtest.WritePart(dir, "part.0", batches))

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)

	reader, err := OpenFileReader("part.0", bucket)
	require.NoError(t, err)
	return reader
}

func TestPlanParts(t *testing.T) {
	reader := openTestReader(t, [][]pqtest.Row{testRows(1, 3), testRows(10, 2)})

	parts, err := reader.PlanParts(pqtest.Columns...)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, int64(3), parts[0].NumRows)
	require.Equal(t, int64(2), parts[1].NumRows)
	for _, part := range parts {
		require.Len(t, part.Columns, len(pqtest.Columns))
		for _, column := range part.Columns {
			require.Greater(t, column.Size, int64(0))
		}
	}

	_, err = reader.PlanParts("NoSuchColumn")
	require.Error(t, err)
}

func TestDeserializeParts(t *testing.T) {
	reader := openTestReader(t, [][]pqtest.Row{testRows(1, 3), testRows(10, 2)})

	parts, err := reader.PlanParts(pqtest.Columns...)
	require.NoError(t, err)

	blockReader, err := NewBlockReader(reader, pqtest.Columns...)
	require.NoError(t, err)

	totalRows := 0
	for _, part := range parts {
		chunks, err := reader.FetchChunks(part)
		require.NoError(t, err)
		require.Len(t, chunks, len(part.Columns))

		data, err := blockReader.Deserialize(part, chunks)
		require.NoError(t, err)
		require.Equal(t, int(part.NumRows), data.NumRows())
		require.Equal(t, len(pqtest.Columns), data.NumColumns())
		totalRows += data.NumRows()
	}
	require.Equal(t, 5, totalRows)

	// First column of the first row group holds the series IDs 1..3.
	chunks, err := reader.FetchChunks(parts[0])
	require.NoError(t, err)
	data, err := blockReader.Deserialize(parts[0], chunks)
	require.NoError(t, err)
	require.Equal(t, "SeriesID", data.ColumnName(0))
	require.Equal(t, int64(1), data.Column(0)[0].Int64())
	require.Equal(t, int64(3), data.Column(0)[2].Int64())
}

func TestDeserializeCorruptChunk(t *testing.T) {
	reader := openTestReader(t, [][]pqtest.Row{testRows(1, 3)})

	parts, err := reader.PlanParts(pqtest.Columns...)
	require.NoError(t, err)

	blockReader, err := NewBlockReader(reader, pqtest.Columns...)
	require.NoError(t, err)

	chunks, err := reader.FetchChunks(parts[0])
	require.NoError(t, err)
	for i := range chunks[0].Data {
		chunks[0].Data[i] = 0xFF
	}

	_, err = blockReader.Deserialize(parts[0], chunks)
	require.Error(t, err)
}

func TestBlockReaderUnknownColumn(t *testing.T) {
	reader := openTestReader(t, [][]pqtest.Row{testRows(1, 3)})

	_, err := NewBlockReader(reader, "NoSuchColumn")
	require.Error(t, err)
}

func TestScanPipeline(t *testing.T) {
	reader := openTestReader(t, [][]pqtest.Row{testRows(1, 4), testRows(100, 4), testRows(200, 2)})

	parts, err := reader.PlanParts(pqtest.Columns...)
	require.NoError(t, err)
	blockReader, err := NewBlockReader(reader, pqtest.Columns...)
	require.NoError(t, err)

	scanProgress := pipeline.NewProgress()
	sink := pipeline.NewBlockSink()

	p := pipeline.NewPipeline()
	sourceID := p.AddProcessor(dataset.NewSource(reader, parts, 2))
	transformID := p.AddProcessor(dataset.NewDeserializeTransform(blockReader, scanProgress))
	sinkID := p.AddProcessor(sink)
	p.ConnectPorts(sourceID, 0, transformID, 0)
	p.ConnectPorts(transformID, 0, sinkID, 0)

	require.NoError(t, pipeline.NewExecutor(p, 4).Execute())

	require.Len(t, sink.Blocks(), len(parts))
	totalRows := 0
	for _, data := range sink.Blocks() {
		totalRows += data.NumRows()
	}
	require.Equal(t, 10, totalRows)
	require.Equal(t, int64(10), scanProgress.Rows())
	require.Greater(t, scanProgress.Bytes(), int64(0))
}
