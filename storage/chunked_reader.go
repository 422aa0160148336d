package storage

import (
	"io"

	"golang.org/x/sync/errgroup"
)

const defaultReadConcurrency = 16

// ChunkedReader splits large reads into bounded ranged requests issued
// concurrently against the underlying reader.
type ChunkedReader struct {
	maxReadSize      int
	concurrencyLimit int
	reader           io.ReaderAt
}

func NewChunkedReader(reader io.ReaderAt, maxReadSize int) *ChunkedReader {
	return &ChunkedReader{
		maxReadSize:      maxReadSize,
		concurrencyLimit: defaultReadConcurrency,
		reader:           reader,
	}
}

func (r ChunkedReader) ReadAt(p []byte, off int64) (n int, err error) {
	var wg errgroup.Group
	wg.SetLimit(r.concurrencyLimit)
	for bytesRead := 0; bytesRead < len(p); bytesRead += r.maxReadSize {
		readUntil := minInt(bytesRead+r.maxReadSize, len(p))
		part := p[bytesRead:readUntil]
		partOffset := int64(bytesRead) + off
		wg.Go(func() error {
			_, err := r.reader.ReadAt(part, partOffset)
			return err
		})
	}
	if err := wg.Wait(); err != nil {
		return 0, err
	}

	return len(p), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
