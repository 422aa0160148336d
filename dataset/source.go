package dataset

import (
	"golang.org/x/sync/errgroup"

	"github.com/YimingQiao/databend/block"
	"github.com/YimingQiao/databend/pipeline"
)

// ChunkFetcher reads the raw column chunk bytes of one part from storage.
type ChunkFetcher interface {
	FetchChunks(part *PartInfo) (ChunkSet, error)
}

// Source feeds planned parts into the pipeline. Each Process call fetches
// the raw chunks for one batch of parts and emits them as a block tagged
// with a SourceMeta, leaving decoding to the downstream transform.
type Source struct {
	pipeline.BaseProcessor

	fetcher   ChunkFetcher
	parts     []*PartInfo
	batchSize int

	outputData *block.Block
}

func NewSource(fetcher ChunkFetcher, parts []*PartInfo, batchSize int) *Source {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Source{
		BaseProcessor: pipeline.NewBaseProcessor("ParquetSource", 0, 1),
		fetcher:       fetcher,
		parts:         parts,
		batchSize:     batchSize,
	}
}

func (s *Source) Event() (pipeline.Event, error) {
	output := s.Output(0)

	if output.IsFinished() {
		s.parts = nil
		return pipeline.EventFinished, nil
	}

	if !output.CanPush() {
		return pipeline.EventNeedConsume, nil
	}

	if s.outputData != nil {
		data := s.outputData
		s.outputData = nil
		output.PushData(data)
		return pipeline.EventNeedConsume, nil
	}

	if len(s.parts) == 0 {
		output.Finish()
		return pipeline.EventFinished, nil
	}

	return pipeline.EventSync, nil
}

func (s *Source) Process() error {
	if len(s.parts) == 0 {
		return nil
	}

	numParts := s.batchSize
	if numParts > len(s.parts) {
		numParts = len(s.parts)
	}
	parts := s.parts[:numParts]
	s.parts = s.parts[numParts:]

	chunks := make([]ChunkSet, len(parts))
	var wg errgroup.Group
	for i, part := range parts {
		i, part := i, part
		wg.Go(func() error {
			chunkSet, err := s.fetcher.FetchChunks(part)
			if err != nil {
				return err
			}
			chunks[i] = chunkSet
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}

	s.outputData = block.EmptyWithMeta(NewSourceMeta(parts, chunks))
	return nil
}
