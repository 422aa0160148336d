package pipeline

// Event is what a processor asks of the executor after inspecting its ports.
type Event int

const (
	// EventNeedData: the input has no data, schedule upstream.
	EventNeedData Event = iota
	// EventNeedConsume: the output holds unconsumed data, schedule downstream.
	EventNeedConsume
	// EventSync: the processor has CPU work, call Process.
	EventSync
	// EventFinished: the processor will never produce or consume again.
	EventFinished
)

func (e Event) String() string {
	switch e {
	case EventNeedData:
		return "NeedData"
	case EventNeedConsume:
		return "NeedConsume"
	case EventSync:
		return "Sync"
	case EventFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Processor is one node of an execution pipeline.
//
// Event inspects and mutates port state only. It never blocks, performs
// I/O or decodes data, so the executor can call it from its polling loop.
// Process carries the CPU-bound work and is called only after Event
// returned EventSync. The executor invokes each processor from at most
// one goroutine at a time.
type Processor interface {
	Name() string
	Event() (Event, error)
	Process() error
	Inputs() []*InputPort
	Outputs() []*OutputPort
}

// BaseProcessor owns the ports of a processor.
type BaseProcessor struct {
	name    string
	inputs  []*InputPort
	outputs []*OutputPort
}

func NewBaseProcessor(name string, numInputs, numOutputs int) BaseProcessor {
	inputs := make([]*InputPort, numInputs)
	for i := range inputs {
		inputs[i] = NewInputPort()
	}
	outputs := make([]*OutputPort, numOutputs)
	for i := range outputs {
		outputs[i] = NewOutputPort()
	}
	return BaseProcessor{name: name, inputs: inputs, outputs: outputs}
}

func (b *BaseProcessor) Name() string           { return b.name }
func (b *BaseProcessor) Inputs() []*InputPort   { return b.inputs }
func (b *BaseProcessor) Outputs() []*OutputPort { return b.outputs }

func (b *BaseProcessor) Input(i int) *InputPort   { return b.inputs[i] }
func (b *BaseProcessor) Output(i int) *OutputPort { return b.outputs[i] }
