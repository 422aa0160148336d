package db

import (
	"io"

	"github.com/pkg/errors"
	"github.com/segmentio/parquet-go"

	"github.com/YimingQiao/databend/block"
	"github.com/YimingQiao/databend/dataset"
)

type readColumn struct {
	name  string
	index int
}

// BlockReader decodes raw column chunks into blocks. The parquet file is
// opened once over the FileReader; page reads during decoding are served
// from the chunk bytes handed to Deserialize.
type BlockReader struct {
	reader  *FileReader
	file    *parquet.File
	columns []readColumn
}

func NewBlockReader(reader *FileReader, columns ...string) (*BlockReader, error) {
	file, err := parquet.OpenFile(reader, reader.FileSize(),
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
		parquet.ReadBufferSize(ReadBufferSize),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open parquet file "+reader.partName)
	}

	if len(columns) == 0 {
		for _, field := range file.Schema().Fields() {
			columns = append(columns, field.Name())
		}
	}
	readColumns := make([]readColumn, 0, len(columns))
	for _, name := range columns {
		leaf, ok := file.Schema().Lookup(name)
		if !ok {
			return nil, errors.Errorf("column %q not found in %s", name, reader.partName)
		}
		readColumns = append(readColumns, readColumn{name: name, index: leaf.ColumnIndex})
	}

	return &BlockReader{
		reader:  reader,
		file:    file,
		columns: readColumns,
	}, nil
}

// Columns returns the names of the columns this reader decodes.
func (b *BlockReader) Columns() []string {
	names := make([]string, 0, len(b.columns))
	for _, col := range b.columns {
		names = append(names, col.name)
	}
	return names
}

// Deserialize decodes one part from its raw chunks into a block.
func (b *BlockReader) Deserialize(part *dataset.PartInfo, chunks dataset.ChunkSet) (*block.Block, error) {
	if part.RowGroup >= len(b.file.RowGroups()) {
		return nil, errors.Errorf("part %s references row group %d of %d",
			part.Path, part.RowGroup, len(b.file.RowGroups()))
	}

	release := b.reader.holdChunks(chunks)
	defer release()

	rowGroup := b.file.RowGroups()[part.RowGroup]
	names := make([]string, 0, len(b.columns))
	columns := make([][]parquet.Value, 0, len(b.columns))
	for _, col := range b.columns {
		values, err := readChunkValues(rowGroup.ColumnChunks()[col.index], part.NumRows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to deserialize %s row group %d column %q",
				part.Path, part.RowGroup, col.name)
		}
		names = append(names, col.name)
		columns = append(columns, values)
	}

	return block.New(names, columns), nil
}

func readChunkValues(chunk parquet.ColumnChunk, numRows int64) ([]parquet.Value, error) {
	pages := chunk.Pages()
	defer pages.Close()

	values := make([]parquet.Value, 0, numRows)
	for {
		page, err := pages.ReadPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		pageValues := make([]parquet.Value, page.NumValues())
		n, err := page.Values().ReadValues(pageValues)
		if err != nil && err != io.EOF {
			return nil, err
		}
		values = append(values, pageValues[:n]...)
	}

	if int64(len(values)) != numRows {
		return nil, errors.Errorf("decoded %d values, expected %d", len(values), numRows)
	}
	return values, nil
}
