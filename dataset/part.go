package dataset

// ColumnChunkRange locates the raw bytes of one column chunk inside a
// parquet data file. The offset points at the dictionary page when the
// chunk has one, so the range covers everything needed to decode the
// column.
type ColumnChunkRange struct {
	Column int
	Offset int64
	Size   int64
}

// PartInfo describes one row group to be read and decoded. Parts are built
// by the planner from file metadata and are immutable afterwards.
type PartInfo struct {
	Path     string
	RowGroup int
	NumRows  int64
	Columns  []ColumnChunkRange
}

// ColumnChunk is the raw, still encoded bytes of one column within a part.
type ColumnChunk struct {
	Column int
	Offset int64
	Data   []byte
}

// ChunkSet holds the raw column chunks of one part, ordered by column.
type ChunkSet []ColumnChunk

// Size returns the total number of raw bytes in the set.
func (c ChunkSet) Size() int64 {
	var size int64
	for _, chunk := range c {
		size += int64(len(chunk.Data))
	}
	return size
}
