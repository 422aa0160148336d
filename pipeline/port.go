package pipeline

import (
	"sync/atomic"

	"github.com/YimingQiao/databend/block"
)

// Port flags. An input and its paired output share one state word, so a
// flag set by one side is immediately visible to the other.
const (
	flagHasData uint32 = 1 << iota
	flagNeedData
	flagFinished
)

// portState is shared between a connected OutputPort and InputPort.
// The data field is written by the producer before flagHasData is set and
// read by the consumer after flagHasData is observed, so the atomic flag
// word is the only synchronization required.
type portState struct {
	flags atomic.Uint32
	data  *block.Block
}

func (s *portState) set(flag uint32) {
	for {
		old := s.flags.Load()
		if old&flag == flag || s.flags.CompareAndSwap(old, old|flag) {
			return
		}
	}
}

func (s *portState) clear(flag uint32) {
	for {
		old := s.flags.Load()
		if old&flag == 0 || s.flags.CompareAndSwap(old, old&^flag) {
			return
		}
	}
}

func (s *portState) has(flag uint32) bool {
	return s.flags.Load()&flag != 0
}

// InputPort is the consuming side of a processor-to-processor handshake.
type InputPort struct {
	state *portState
}

func NewInputPort() *InputPort {
	return &InputPort{state: &portState{}}
}

// HasData reports whether a block is waiting to be pulled.
func (p *InputPort) HasData() bool {
	return p.state.has(flagHasData)
}

// PullData retrieves the pushed block. Calling it without a pending block
// is a protocol violation.
func (p *InputPort) PullData() *block.Block {
	if !p.state.has(flagHasData) {
		panic("pipeline: pull from input port without data")
	}
	data := p.state.data
	p.state.data = nil
	p.state.clear(flagHasData)
	return data
}

// SetNeedData asks the upstream producer for more data.
func (p *InputPort) SetNeedData() {
	p.state.set(flagNeedData)
}

// SetNotNeedData withdraws the demand for data.
func (p *InputPort) SetNotNeedData() {
	p.state.clear(flagNeedData)
}

// IsFinished reports whether the producer has finished and all pushed data
// has been drained. A finished port with a pending block is not finished
// until that block is pulled.
func (p *InputPort) IsFinished() bool {
	flags := p.state.flags.Load()
	return flags&flagFinished != 0 && flags&flagHasData == 0
}

// Finish tells the producer that no more data will be consumed.
func (p *InputPort) Finish() {
	p.state.set(flagFinished)
}

// OutputPort is the producing side of a processor-to-processor handshake.
type OutputPort struct {
	state *portState
}

func NewOutputPort() *OutputPort {
	return &OutputPort{state: &portState{}}
}

// CanPush reports whether the consumer wants data and the slot is free.
func (p *OutputPort) CanPush() bool {
	flags := p.state.flags.Load()
	return flags&flagNeedData != 0 && flags&flagHasData == 0 && flags&flagFinished == 0
}

// PushData hands a block to the consumer. Pushing when CanPush is false is
// a protocol violation.
func (p *OutputPort) PushData(data *block.Block) {
	if !p.CanPush() {
		panic("pipeline: push to output port that cannot accept data")
	}
	p.state.data = data
	p.state.set(flagHasData)
	p.state.clear(flagNeedData)
}

// IsFinished reports whether either side has finished the port.
func (p *OutputPort) IsFinished() bool {
	return p.state.has(flagFinished)
}

// Finish tells the consumer that no more data will be produced.
func (p *OutputPort) Finish() {
	p.state.set(flagFinished)
}

// Connect pairs an output port with an input port by sharing their state.
func Connect(output *OutputPort, input *InputPort) {
	shared := &portState{}
	output.state = shared
	input.state = shared
}
