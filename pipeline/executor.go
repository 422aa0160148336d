package pipeline

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Edge records a connection between two processors in a pipeline.
type Edge struct {
	From     int
	FromPort int
	To       int
	ToPort   int
}

// Pipeline is a compiled graph of connected processors.
type Pipeline struct {
	processors []Processor
	edges      []Edge
	upstream   [][]int
	downstream [][]int
	claims     []int32
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// AddProcessor registers a processor and returns its index.
func (p *Pipeline) AddProcessor(proc Processor) int {
	p.processors = append(p.processors, proc)
	p.upstream = append(p.upstream, nil)
	p.downstream = append(p.downstream, nil)
	p.claims = append(p.claims, 0)
	return len(p.processors) - 1
}

// ConnectPorts links an output port of processor from to an input port of
// processor to.
func (p *Pipeline) ConnectPorts(from, fromPort, to, toPort int) {
	Connect(p.processors[from].Outputs()[fromPort], p.processors[to].Inputs()[toPort])
	p.edges = append(p.edges, Edge{From: from, FromPort: fromPort, To: to, ToPort: toPort})
	p.downstream[from] = appendUnique(p.downstream[from], to)
	p.upstream[to] = appendUnique(p.upstream[to], from)
}

func (p *Pipeline) Processors() []Processor { return p.processors }

// finishAll finishes every port so that a failed run drains instead of
// deadlocking.
func (p *Pipeline) finishAll() {
	for _, proc := range p.processors {
		for _, input := range proc.Inputs() {
			input.Finish()
		}
		for _, output := range proc.Outputs() {
			output.Finish()
		}
	}
}

func (p *Pipeline) tryClaim(i int) bool {
	return atomic.CompareAndSwapInt32(&p.claims[i], 0, 1)
}

func (p *Pipeline) release(i int) {
	atomic.StoreInt32(&p.claims[i], 0)
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// Executor drives a pipeline to completion on a pool of workers. Each
// worker polls Event on a claimed processor and runs Process when asked,
// re-scheduling neighbors according to the reported event.
type Executor struct {
	pipeline *Pipeline
	workers  int
}

func NewExecutor(pipeline *Pipeline, workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{pipeline: pipeline, workers: workers}
}

func (e *Executor) Execute() error {
	n := len(e.pipeline.processors)
	if n == 0 {
		return nil
	}

	sched := newScheduler(n)
	for i := 0; i < n; i++ {
		sched.enqueue(i)
	}

	var finishedCount atomic.Int32
	finishedFlags := make([]atomic.Bool, n)

	var wg errgroup.Group
	for i := 0; i < e.workers; i++ {
		wg.Go(func() error {
			for {
				select {
				case <-sched.done:
					return nil
				case idx := <-sched.queue:
					sched.queued[idx].Store(false)
					if err := e.step(idx, sched, finishedFlags, &finishedCount); err != nil {
						e.pipeline.finishAll()
						sched.stop()
						return err
					}
				}
			}
		})
	}

	return wg.Wait()
}

// scheduler is the shared wakeup queue of a run. The queued flags keep at
// most one entry per processor in flight, so the channel holds at most one
// index per processor and an enqueue can never block a worker.
type scheduler struct {
	queue  chan int
	done   chan struct{}
	stop   func()
	queued []atomic.Bool
}

func newScheduler(n int) *scheduler {
	s := &scheduler{
		queue:  make(chan int, n),
		done:   make(chan struct{}),
		queued: make([]atomic.Bool, n),
	}
	var once sync.Once
	s.stop = func() { once.Do(func() { close(s.done) }) }
	return s
}

func (s *scheduler) enqueue(idx int) {
	if !s.queued[idx].CompareAndSwap(false, true) {
		return
	}
	select {
	case <-s.done:
	case s.queue <- idx:
	}
}

func (e *Executor) step(
	idx int,
	sched *scheduler,
	finishedFlags []atomic.Bool,
	finishedCount *atomic.Int32,
) error {
	if !e.pipeline.tryClaim(idx) {
		// Another worker holds the processor; its wakeup must not be lost.
		sched.enqueue(idx)
		return nil
	}
	defer e.pipeline.release(idx)

	proc := e.pipeline.processors[idx]
	event, err := proc.Event()
	if err != nil {
		return errors.Wrapf(err, "processor %s", proc.Name())
	}

	switch event {
	case EventSync:
		if err := proc.Process(); err != nil {
			return errors.Wrapf(err, "processor %s", proc.Name())
		}
		sched.enqueue(idx)
		e.enqueueNeighbors(sched, idx)

	case EventNeedData:
		for _, up := range e.pipeline.upstream[idx] {
			sched.enqueue(up)
		}

	case EventNeedConsume:
		for _, down := range e.pipeline.downstream[idx] {
			sched.enqueue(down)
		}

	case EventFinished:
		e.enqueueNeighbors(sched, idx)
		if finishedFlags[idx].CompareAndSwap(false, true) {
			if int(finishedCount.Add(1)) == len(e.pipeline.processors) {
				sched.stop()
			}
		}
	}

	return nil
}

func (e *Executor) enqueueNeighbors(sched *scheduler, idx int) {
	for _, up := range e.pipeline.upstream[idx] {
		sched.enqueue(up)
	}
	for _, down := range e.pipeline.downstream[idx] {
		sched.enqueue(down)
	}
}
