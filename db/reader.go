package db

import (
	"context"
	"io"
	"sync"

	"github.com/apache/arrow/go/v10/parquet/metadata"
	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
	"golang.org/x/exp/slices"

	"github.com/YimingQiao/databend/dataset"
	"github.com/YimingQiao/databend/storage"
)

const (
	ReadBufferSize = 4 * 1024

	// chunkReadSize bounds a single ranged request when fetching column chunks.
	chunkReadSize = 512 * 1024

	dataFileSuffix     = ".parquet"
	metadataFileSuffix = ".metadata"
)

type section struct {
	from  int64
	to    int64
	bytes []byte
}

// FileReader reads one parquet part from an object storage bucket. Footer
// metadata is loaded once at open time from the sidecar metadata file.
// Byte ranges registered as in-memory sections are served locally; all
// other reads fall through to ranged bucket requests.
type FileReader struct {
	partName     string
	metadata     *metadata.FileMetaData
	dataFileSize int64
	dataReader   *storage.BucketReader

	mu       sync.RWMutex
	sections []section
}

func OpenFileReader(partName string, bucket objstore.Bucket) (*FileReader, error) {
	partMetadata, err := readMetadata(partName+metadataFileSuffix, bucket)
	if err != nil {
		return nil, err
	}

	dataFile := partName + dataFileSuffix
	dataFileAttrs, err := bucket.Attributes(context.Background(), dataFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get attributes for data file "+dataFile)
	}

	return &FileReader{
		partName:     partName,
		metadata:     partMetadata,
		dataFileSize: dataFileAttrs.Size,
		dataReader:   storage.NewBucketReader(dataFile, bucket),
	}, nil
}

func (r *FileReader) MetaData() *metadata.FileMetaData {
	return r.metadata
}

func (r *FileReader) FileSize() int64 {
	return r.dataFileSize
}

func (r *FileReader) ReadAt(p []byte, off int64) (n int, err error) {
	r.mu.RLock()
	for _, s := range r.sections {
		if off >= s.from && off < s.to {
			n = copy(p, s.bytes[off-s.from:])
			r.mu.RUnlock()
			if n == len(p) {
				return n, nil
			}
			// Buffered reads may extend past the section; serve the rest
			// from the bucket.
			m, err := r.ReadAt(p[n:], off+int64(n))
			return n + m, err
		}
	}
	r.mu.RUnlock()

	return r.dataReader.ReadAt(p, off)
}

// PlanParts builds one PartInfo per row group, restricted to the given
// columns. With no columns given, all columns are planned. Each planned
// column chunk range starts at the dictionary page when the chunk has one,
// so fetching the range yields everything needed to decode the column.
func (r *FileReader) PlanParts(columns ...string) ([]*dataset.PartInfo, error) {
	parts := make([]*dataset.PartInfo, 0, len(r.metadata.RowGroups))
	for i, rowGroup := range r.metadata.RowGroups {
		part := &dataset.PartInfo{
			Path:     r.partName + dataFileSuffix,
			RowGroup: i,
			NumRows:  rowGroup.NumRows,
		}
		for j, column := range rowGroup.Columns {
			md := column.MetaData
			name := md.PathInSchema[len(md.PathInSchema)-1]
			if len(columns) > 0 && !slices.Contains(columns, name) {
				continue
			}

			offset := md.DataPageOffset
			if md.DictionaryPageOffset != nil && *md.DictionaryPageOffset > 0 && *md.DictionaryPageOffset < offset {
				offset = *md.DictionaryPageOffset
			}
			part.Columns = append(part.Columns, dataset.ColumnChunkRange{
				Column: j,
				Offset: offset,
				Size:   md.TotalCompressedSize,
			})
		}
		if len(part.Columns) == 0 {
			return nil, errors.Errorf("part %s row group %d matches no columns", r.partName, i)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// FetchChunks reads the raw column chunk bytes of one part from the bucket.
func (r *FileReader) FetchChunks(part *dataset.PartInfo) (dataset.ChunkSet, error) {
	chunkReader := storage.NewChunkedReader(r.dataReader, chunkReadSize)

	chunks := make(dataset.ChunkSet, 0, len(part.Columns))
	for _, column := range part.Columns {
		buffer := make([]byte, column.Size)
		if _, err := chunkReader.ReadAt(buffer, column.Offset); err != nil {
			return nil, errors.Wrapf(err, "failed to fetch chunk for part %s column %d", part.Path, column.Column)
		}
		chunks = append(chunks, dataset.ColumnChunk{
			Column: column.Column,
			Offset: column.Offset,
			Data:   buffer,
		})
	}
	return chunks, nil
}

// holdChunks registers raw chunks as in-memory sections so that page reads
// during decoding are served without touching the bucket. The returned
// function releases the sections.
func (r *FileReader) holdChunks(chunks dataset.ChunkSet) func() {
	added := make([]section, 0, len(chunks))
	r.mu.Lock()
	for _, chunk := range chunks {
		s := section{
			from:  chunk.Offset,
			to:    chunk.Offset + int64(len(chunk.Data)),
			bytes: chunk.Data,
		}
		added = append(added, s)
		r.sections = append(r.sections, s)
	}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, s := range added {
			for i := range r.sections {
				if r.sections[i].from == s.from && r.sections[i].to == s.to {
					r.sections = append(r.sections[:i], r.sections[i+1:]...)
					break
				}
			}
		}
	}
}

func readMetadata(metadataFile string, bucket objstore.Bucket) (*metadata.FileMetaData, error) {
	metaFileAttrs, err := bucket.Attributes(context.Background(), metadataFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get attributes for metadata file "+metadataFile)
	}

	metaReader, err := bucket.Get(context.Background(), metadataFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get metadata file "+metadataFile)
	}
	defer metaReader.Close()

	metadataBytes := make([]byte, metaFileAttrs.Size)
	if _, err := io.ReadFull(metaReader, metadataBytes); err != nil {
		return nil, err
	}

	return metadata.NewFileMetaData(metadataBytes, nil)
}
