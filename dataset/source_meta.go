package dataset

// SourceMeta carries undecoded parts through the pipeline, attached to an
// otherwise empty block. Parts and Chunks are kept in lock-step: Chunks[i]
// holds the raw bytes for Parts[i].
type SourceMeta struct {
	Parts  []*PartInfo
	Chunks []ChunkSet
}

func NewSourceMeta(parts []*PartInfo, chunks []ChunkSet) *SourceMeta {
	if len(parts) != len(chunks) {
		panic("dataset: source meta parts and chunks out of step")
	}
	return &SourceMeta{Parts: parts, Chunks: chunks}
}

func (m *SourceMeta) MetaName() string { return "SourceMeta" }
