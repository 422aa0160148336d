package pipeline

import "github.com/YimingQiao/databend/block"

// BlockSink is the terminal consumer of a pipeline. It drains its input
// and keeps the received blocks for the caller.
type BlockSink struct {
	BaseProcessor

	blocks []*block.Block
}

func NewBlockSink() *BlockSink {
	return &BlockSink{BaseProcessor: NewBaseProcessor("BlockSink", 1, 0)}
}

func (s *BlockSink) Event() (Event, error) {
	input := s.Input(0)

	if input.HasData() {
		s.blocks = append(s.blocks, input.PullData())
		input.SetNeedData()
		return EventNeedData, nil
	}

	if input.IsFinished() {
		return EventFinished, nil
	}

	input.SetNeedData()
	return EventNeedData, nil
}

func (s *BlockSink) Process() error { return nil }

// Blocks returns the blocks received so far.
func (s *BlockSink) Blocks() []*block.Block { return s.blocks }
