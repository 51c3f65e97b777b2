// Package chunk splits extracted document text into bounded-size retrievable
// segments. Cut points prefer the last newline in the window, then the last
// space, then a hard cut, so every segment stays semantically coherent while
// the splitter is guaranteed to make forward progress.
package chunk

// DefaultMaxChars is the default maximum chunk size in characters.
const DefaultMaxChars = 1500

// Chunk is a retrievable unit of content belonging to one logical document.
type Chunk struct {
	// ID is "{document_id}#chunk-{index}", unique within a document.
	ID string `json:"id"`

	// Text is the trimmed segment content. Never empty.
	Text string `json:"text"`

	// Metadata carries provenance for retrieval display and filtering.
	Metadata Metadata `json:"metadata"`
}

// Metadata is the provenance attached to every chunk.
type Metadata struct {
	// Path is the file name (base name only).
	Path string `json:"path"`

	// Source is the root label the document came from.
	Source string `json:"source"`

	// FileType is the extension without the leading dot.
	FileType string `json:"file_type"`

	// ChunkIndex is the 0-based position of this chunk within its document.
	ChunkIndex int `json:"chunk_index"`

	// ChunkCount is the total number of chunks in the document.
	ChunkCount int `json:"chunk_count"`

	// DocumentID is the owning document identifier.
	DocumentID string `json:"document_id"`

	// SourcePath is the absolute path the document was read from.
	SourcePath string `json:"source_path"`
}
