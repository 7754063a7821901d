package llm

// Document is a source document handed to the pipeline by the caller.
// It is immutable after extraction and identified by filename; ingesting
// the same filename again replaces its previously indexed chunks.
type Document struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Chunk is a bounded excerpt of exactly one document, the unit of
// indexing and retrieval. ChunkIndex is the 0-based position of the
// chunk within its source document's chunk sequence.
type Chunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// ScoredChunk is a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// SourceCitation links an answer back to one retrieved passage.
type SourceCitation struct {
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Excerpt    string `json:"excerpt"`
}

// Answer is the result of one question. Sources follow retrieval order.
// The caller owns conversation history; the pipeline retains nothing.
type Answer struct {
	Text    string           `json:"text"`
	Sources []SourceCitation `json:"sources"`
}
