package dataset

import (
	"github.com/pkg/errors"

	"github.com/YimingQiao/databend/block"
	"github.com/YimingQiao/databend/pipeline"
)

// BlockReader decodes the raw column chunks of one part into a block.
type BlockReader interface {
	Deserialize(part *PartInfo, chunks ChunkSet) (*block.Block, error)
}

// DeserializeTransform turns undecoded source batches into blocks. It pulls
// blocks tagged with a SourceMeta from its input, decodes the carried parts
// one at a time and pushes the results downstream, accounting every decoded
// block in the shared scan progress.
//
// The transform buffers at most one decoded block and drains one source
// batch completely before pulling the next.
type DeserializeTransform struct {
	pipeline.BaseProcessor

	scanProgress *pipeline.Progress
	blockReader  BlockReader

	outputData *block.Block
	parts      []*PartInfo
	chunks     []ChunkSet
}

func NewDeserializeTransform(blockReader BlockReader, scanProgress *pipeline.Progress) *DeserializeTransform {
	return &DeserializeTransform{
		BaseProcessor: pipeline.NewBaseProcessor("DeserializeTransform", 1, 1),
		scanProgress:  scanProgress,
		blockReader:   blockReader,
	}
}

func (t *DeserializeTransform) Event() (pipeline.Event, error) {
	input, output := t.Input(0), t.Output(0)

	if output.IsFinished() {
		input.Finish()
		return pipeline.EventFinished, nil
	}

	if !output.CanPush() {
		input.SetNotNeedData()
		return pipeline.EventNeedConsume, nil
	}

	if t.outputData != nil {
		data := t.outputData
		t.outputData = nil
		output.PushData(data)
		return pipeline.EventNeedConsume, nil
	}

	if len(t.chunks) > 0 {
		if !input.HasData() {
			input.SetNeedData()
		}
		return pipeline.EventSync, nil
	}

	if input.HasData() {
		data := input.PullData()
		meta := data.TakeMeta()
		sourceMeta, ok := meta.(*SourceMeta)
		if !ok {
			// The upstream source guarantees the meta kind; anything else
			// means the contract is broken and the branch must abort.
			return pipeline.EventFinished, errors.Errorf(
				"deserialize: unexpected block meta %T", meta)
		}
		t.parts = sourceMeta.Parts
		t.chunks = sourceMeta.Chunks
		return pipeline.EventSync, nil
	}

	if input.IsFinished() {
		output.Finish()
		return pipeline.EventFinished, nil
	}

	input.SetNeedData()
	return pipeline.EventNeedData, nil
}

func (t *DeserializeTransform) Process() error {
	if len(t.parts) == 0 || len(t.chunks) == 0 {
		return nil
	}

	part := t.parts[len(t.parts)-1]
	chunks := t.chunks[len(t.chunks)-1]
	t.parts = t.parts[:len(t.parts)-1]
	t.chunks = t.chunks[:len(t.chunks)-1]

	data, err := t.blockReader.Deserialize(part, chunks)
	if err != nil {
		return err
	}

	t.scanProgress.Incr(pipeline.ProgressValues{
		Rows:  data.NumRows(),
		Bytes: int(data.MemorySize()),
	})
	t.outputData = data
	return nil
}
