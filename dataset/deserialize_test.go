package dataset

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/databend/block"
	"github.com/YimingQiao/databend/pipeline"
)

// fakeDecoder records the parts it decodes and fabricates blocks with a
// fixed number of rows.
type fakeDecoder struct {
	rowsPerPart int
	decoded     []*PartInfo
	err         error
}

func (d *fakeDecoder) Deserialize(part *PartInfo, chunks ChunkSet) (*block.Block, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.decoded = append(d.decoded, part)

	values := make([]parquet.Value, d.rowsPerPart)
	for i := range values {
		values[i] = parquet.Int64Value(int64(i))
	}
	return block.New([]string{"v"}, [][]parquet.Value{values}), nil
}

type unrelatedMeta struct{}

func (unrelatedMeta) MetaName() string { return "UnrelatedMeta" }

func testPart(i int) *PartInfo {
	return &PartInfo{Path: fmt.Sprintf("part.%d.parquet", i), RowGroup: i, NumRows: 2}
}

func testChunks(i int) ChunkSet {
	return ChunkSet{{Column: 0, Offset: int64(i * 100), Data: []byte{byte(i)}}}
}

func testBatch(numParts int) *block.Block {
	parts := make([]*PartInfo, 0, numParts)
	chunks := make([]ChunkSet, 0, numParts)
	for i := 0; i < numParts; i++ {
		parts = append(parts, testPart(i))
		chunks = append(chunks, testChunks(i))
	}
	return block.EmptyWithMeta(NewSourceMeta(parts, chunks))
}

// newTestTransform wires a transform to a driver-side upstream output and
// downstream input.
func newTestTransform(decoder BlockReader, progress *pipeline.Progress) (*DeserializeTransform, *pipeline.OutputPort, *pipeline.InputPort) {
	transform := NewDeserializeTransform(decoder, progress)
	upstream := pipeline.NewOutputPort()
	downstream := pipeline.NewInputPort()
	pipeline.Connect(upstream, transform.Inputs()[0])
	pipeline.Connect(transform.Outputs()[0], downstream)
	return transform, upstream, downstream
}

// drive polls the transform to completion, feeding it the given batches and
// draining its output, and returns the emitted blocks.
func drive(t *testing.T, transform *DeserializeTransform, upstream *pipeline.OutputPort, downstream *pipeline.InputPort, batches []*block.Block) []*block.Block {
	t.Helper()
	downstream.SetNeedData()

	var emitted []*block.Block
	next := 0
	for i := 0; i < 10000; i++ {
		event, err := transform.Event()
		require.NoError(t, err)

		switch event {
		case pipeline.EventSync:
			require.NoError(t, transform.Process())
		case pipeline.EventNeedConsume:
			if downstream.HasData() {
				emitted = append(emitted, downstream.PullData())
				downstream.SetNeedData()
			}
		case pipeline.EventNeedData:
			if next < len(batches) {
				upstream.PushData(batches[next])
				next++
			} else {
				upstream.Finish()
			}
		case pipeline.EventFinished:
			return emitted
		}
	}
	t.Fatal("transform did not finish")
	return nil
}

func TestDeserializeDrainsBatchInReverse(t *testing.T) {
	decoder := &fakeDecoder{rowsPerPart: 2}
	progress := pipeline.NewProgress()
	transform, upstream, downstream := newTestTransform(decoder, progress)
	downstream.SetNeedData()

	event, err := transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventNeedData, event)

	upstream.PushData(testBatch(2))

	event, err = transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventSync, event)
	require.NoError(t, transform.Process())

	// The second part of the batch is decoded first.
	require.Len(t, decoder.decoded, 1)
	require.Equal(t, 1, decoder.decoded[0].RowGroup)
	require.Equal(t, int64(2), progress.Rows())

	event, err = transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventNeedConsume, event)
	first := downstream.PullData()
	require.Equal(t, 2, first.NumRows())

	downstream.SetNeedData()
	event, err = transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventSync, event)
	require.NoError(t, transform.Process())

	require.Len(t, decoder.decoded, 2)
	require.Equal(t, 0, decoder.decoded[1].RowGroup)
	require.Equal(t, int64(4), progress.Rows())
	require.Equal(t, 2*first.MemorySize(), progress.Bytes())
}

func TestDeserializeBlockedOutput(t *testing.T) {
	decoder := &fakeDecoder{rowsPerPart: 2}
	progress := pipeline.NewProgress()
	transform, upstream, downstream := newTestTransform(decoder, progress)
	downstream.SetNeedData()

	_, err := transform.Event()
	require.NoError(t, err)
	upstream.PushData(testBatch(2))

	event, err := transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventSync, event)
	require.NoError(t, transform.Process())

	// First push consumes the downstream demand.
	event, err = transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventNeedConsume, event)

	// The output is blocked: no decode may run, no progress may accrue,
	// no matter how often the transform is polled.
	rows := progress.Rows()
	for i := 0; i < 5; i++ {
		event, err = transform.Event()
		require.NoError(t, err)
		require.Equal(t, pipeline.EventNeedConsume, event)
	}
	require.Len(t, decoder.decoded, 1)
	require.Equal(t, rows, progress.Rows())

	// Draining the output resumes decoding.
	downstream.PullData()
	downstream.SetNeedData()
	event, err = transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventSync, event)
}

func TestDeserializeRejectsUnexpectedMeta(t *testing.T) {
	cases := []struct {
		name string
		data *block.Block
	}{
		{name: "unrelated_meta", data: block.EmptyWithMeta(unrelatedMeta{})},
		{name: "missing_meta", data: block.New(nil, nil)},
	}
	for _, tcase := range cases {
		t.Run(tcase.name, func(t *testing.T) {
			transform, upstream, downstream := newTestTransform(&fakeDecoder{rowsPerPart: 1}, pipeline.NewProgress())
			downstream.SetNeedData()

			_, err := transform.Event()
			require.NoError(t, err)
			upstream.PushData(tcase.data)

			_, err = transform.Event()
			require.Error(t, err)
			require.Contains(t, err.Error(), "unexpected block meta")
		})
	}
}

func TestDeserializeFinishedInput(t *testing.T) {
	transform, upstream, downstream := newTestTransform(&fakeDecoder{rowsPerPart: 1}, pipeline.NewProgress())
	downstream.SetNeedData()
	upstream.Finish()

	event, err := transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventFinished, event)
	require.True(t, downstream.IsFinished())
}

func TestDeserializeFinishedOutput(t *testing.T) {
	decoder := &fakeDecoder{rowsPerPart: 1}
	transform, upstream, downstream := newTestTransform(decoder, pipeline.NewProgress())
	downstream.Finish()

	event, err := transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventFinished, event)
	require.True(t, upstream.IsFinished())
	require.Empty(t, decoder.decoded)
}

func TestDeserializeEmitsEveryPart(t *testing.T) {
	decoder := &fakeDecoder{rowsPerPart: 3}
	progress := pipeline.NewProgress()
	transform, upstream, downstream := newTestTransform(decoder, progress)

	batches := []*block.Block{testBatch(2), testBatch(3), testBatch(1)}
	emitted := drive(t, transform, upstream, downstream, batches)

	require.Len(t, emitted, 6)
	require.Len(t, decoder.decoded, 6)
	require.Equal(t, int64(18), progress.Rows())
	require.True(t, downstream.IsFinished())
}

func TestDeserializeDecodeError(t *testing.T) {
	decoder := &fakeDecoder{err: errors.New("corrupt chunk")}
	progress := pipeline.NewProgress()
	transform, upstream, downstream := newTestTransform(decoder, progress)
	downstream.SetNeedData()

	_, err := transform.Event()
	require.NoError(t, err)
	upstream.PushData(testBatch(1))

	event, err := transform.Event()
	require.NoError(t, err)
	require.Equal(t, pipeline.EventSync, event)

	err = transform.Process()
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt chunk")
	require.Equal(t, int64(0), progress.Rows())
	require.Equal(t, int64(0), progress.Bytes())
	require.False(t, downstream.HasData())
}

func TestDeserializeProcessWithoutWork(t *testing.T) {
	decoder := &fakeDecoder{rowsPerPart: 1}
	progress := pipeline.NewProgress()
	transform, _, _ := newTestTransform(decoder, progress)

	require.NoError(t, transform.Process())
	require.Empty(t, decoder.decoded)
	require.Equal(t, int64(0), progress.Rows())
}
