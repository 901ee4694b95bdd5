// Package chunk splits extracted document text into overlapping
// fixed-size windows for embedding and retrieval.
package chunk

import (
	"fmt"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

const (
	// DefaultSize is the default chunk window size in characters.
	DefaultSize = 1000
	// DefaultOverlap is the default overlap between consecutive windows.
	DefaultOverlap = 200
)

// Split cuts text into overlapping windows of size characters, each
// window starting size-overlap characters after the previous one. The
// final window may be shorter than size. Empty text yields no chunks.
//
// Split is pure: the same input always produces the same windows, which
// keeps re-ingestion deterministic.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", apperr.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size, got overlap=%d size=%d", apperr.ErrInvalidInput, overlap, size)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if start+size >= len(runes) {
			break
		}
		start = start + size - overlap
	}
	return chunks, nil
}
