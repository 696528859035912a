package knowledge

// DefaultChunkSize and DefaultChunkOverlap are the sliding-window defaults
// used when configuration leaves them unset.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitText splits text into fixed-size windows with fixed overlap.
// Boundaries advance by (size − overlap) each step; the final chunk may be
// shorter. Text no longer than one window is returned as a single chunk.
// The split is byte-based, not sentence-aware.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	if len(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
