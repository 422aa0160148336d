package pipeline

import "github.com/YimingQiao/databend/block"

// OneBlockSource produces a single block built by a snapshot function and
// then finishes. System introspection tables use it to expose point-in-time
// state with no further lifecycle.
type OneBlockSource struct {
	BaseProcessor

	build      func() (*block.Block, error)
	outputData *block.Block
	generated  bool
}

func NewOneBlockSource(name string, build func() (*block.Block, error)) *OneBlockSource {
	return &OneBlockSource{
		BaseProcessor: NewBaseProcessor(name, 0, 1),
		build:         build,
	}
}

func (s *OneBlockSource) Event() (Event, error) {
	output := s.Output(0)

	if output.IsFinished() {
		return EventFinished, nil
	}

	if !output.CanPush() {
		return EventNeedConsume, nil
	}

	if s.outputData != nil {
		data := s.outputData
		s.outputData = nil
		output.PushData(data)
		return EventNeedConsume, nil
	}

	if s.generated {
		output.Finish()
		return EventFinished, nil
	}

	return EventSync, nil
}

func (s *OneBlockSource) Process() error {
	if s.generated {
		return nil
	}
	s.generated = true

	data, err := s.build()
	if err != nil {
		return err
	}
	s.outputData = data
	return nil
}
