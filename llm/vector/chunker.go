package vector

import "strings"

// ChunkConfig configures how document text is split into chunks.
// Size and Overlap are in characters (runes). Overlap must be smaller
// than Size; each chunk after the first starts Overlap characters before
// the previous chunk's end so context straddling a cut is not lost.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns the default chunk configuration.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 1000, Overlap: 200}
}

// separators is the boundary hierarchy tried when placing a cut:
// paragraph break, line break, sentence end, word break. If none occurs
// inside the window the text is hard-cut at the size limit.
var separators = []string{"\n\n", "\n", ". ", " "}

// SplitText splits text into overlapping chunks of at most cfg.Size
// characters, cutting at the largest natural boundary inside each window.
// Chunks are contiguous substrings of the input: the head of each chunk
// after the first repeats the tail of its predecessor. Empty input yields
// no chunks; any non-empty input yields at least one. The function is
// deterministic for identical input and configuration.
func SplitText(text string, cfg ChunkConfig) []string {
	if text == "" {
		return nil
	}
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 5
	}

	runes := []rune(text)
	if len(runes) <= cfg.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		if cut := findBoundary(runes[start:end]); cut > 0 {
			end = start + cut
		}
		chunks = append(chunks, string(runes[start:end]))

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBoundary returns the cut position just after the last occurrence of
// the highest-priority separator in the window, or 0 if no separator occurs.
func findBoundary(window []rune) int {
	s := string(window)
	for _, sep := range separators {
		if idx := strings.LastIndex(s, sep); idx > 0 {
			return len([]rune(s[:idx+len(sep)]))
		}
	}
	return 0
}
