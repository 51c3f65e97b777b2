package chunk

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SplitterOptions configures the splitter behavior.
type SplitterOptions struct {
	// MaxChars is the maximum segment size in characters (default: DefaultMaxChars).
	MaxChars int
}

// Splitter produces bounded-size text segments.
type Splitter struct {
	options SplitterOptions
}

// NewSplitter creates a splitter with default options.
func NewSplitter() *Splitter {
	return NewSplitterWithOptions(SplitterOptions{})
}

// NewSplitterWithOptions creates a splitter with custom options.
func NewSplitterWithOptions(opts SplitterOptions) *Splitter {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	return &Splitter{options: opts}
}

// Split divides text into trimmed, non-empty segments of at most MaxChars.
// Within each window the cut point prefers the last newline, then the last
// space, then falls back to a hard cut at the window edge. Empty or
// whitespace-only input yields zero segments.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	maxChars := s.options.MaxChars
	var segments []string
	start := 0
	length := len(text)

	for start < length {
		end := start + maxChars
		if end > length {
			end = length
		}
		cut := end

		// Prefer cutting after the last newline, then the last space.
		if idx := strings.LastIndexByte(text[start:end], '\n'); idx >= 0 {
			cut = start + idx + 1
		} else if idx := strings.LastIndexByte(text[start:end], ' '); idx >= 0 {
			cut = start + idx + 1
		}

		segment := strings.TrimSpace(text[start:cut])
		if segment != "" {
			segments = append(segments, segment)
		}

		start = cut
	}

	return segments
}

// Build assembles the chunk sequence for one document. Segments are indexed
// contiguously from 0 and every chunk records the document's total count.
func Build(docID, rootLabel, sourcePath string, segments []string) []Chunk {
	if len(segments) == 0 {
		return nil
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(sourcePath)), ".")
	name := filepath.Base(sourcePath)

	chunks := make([]Chunk, 0, len(segments))
	for i, segment := range segments {
		chunks = append(chunks, Chunk{
			ID:   ChunkID(docID, i),
			Text: segment,
			Metadata: Metadata{
				Path:       name,
				Source:     rootLabel,
				FileType:   fileType,
				ChunkIndex: i,
				ChunkCount: len(segments),
				DocumentID: docID,
				SourcePath: sourcePath,
			},
		})
	}

	return chunks
}

// ChunkID returns the chunk identifier for a document and 0-based index.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s#chunk-%d", docID, index)
}
