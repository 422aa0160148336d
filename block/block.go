package block

import "github.com/segmentio/parquet-go"

// Meta is an out-of-band payload attached to a Block. Producers use it to
// ship information that is not row data, such as undecoded source chunks.
// Consumers type-assert on the concrete meta they expect.
type Meta interface {
	MetaName() string
}

// Block is a columnar slice of rows flowing between processors.
type Block struct {
	names   []string
	columns [][]parquet.Value
	numRows int
	meta    Meta
}

func New(names []string, columns [][]parquet.Value) *Block {
	if len(names) != len(columns) {
		panic("block: column name count does not match column count")
	}
	numRows := 0
	if len(columns) > 0 {
		numRows = len(columns[0])
	}
	for _, col := range columns {
		if len(col) != numRows {
			panic("block: columns have unequal lengths")
		}
	}
	return &Block{names: names, columns: columns, numRows: numRows}
}

// EmptyWithMeta creates a block that carries only a meta payload.
func EmptyWithMeta(meta Meta) *Block {
	return &Block{meta: meta}
}

func (b *Block) NumRows() int    { return b.numRows }
func (b *Block) NumColumns() int { return len(b.columns) }

func (b *Block) ColumnName(i int) string      { return b.names[i] }
func (b *Block) Column(i int) []parquet.Value { return b.columns[i] }

func (b *Block) Meta() Meta { return b.meta }

// TakeMeta detaches the meta payload from the block.
func (b *Block) TakeMeta() Meta {
	meta := b.meta
	b.meta = nil
	return meta
}

// MemorySize returns the approximate in-memory footprint of the row data.
func (b *Block) MemorySize() int64 {
	var size int64
	for _, col := range b.columns {
		for _, v := range col {
			size += valueSize(v)
		}
	}
	return size
}

func valueSize(v parquet.Value) int64 {
	switch v.Kind() {
	case parquet.Boolean:
		return 1
	case parquet.Int32, parquet.Float:
		return 4
	case parquet.Int64, parquet.Double:
		return 8
	case parquet.Int96:
		return 12
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return int64(len(v.ByteArray()))
	default:
		return 0
	}
}
