package rag

import "strings"

// Default chunking parameters, character based.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// chunkSeparators in preference order. A chunk boundary snaps backwards to
// the best separator found in the second half of the window.
var chunkSeparators = []string{"\n\n", "\n", ". ", ", ", " "}

// ChunkText splits text into overlapping chunks of at most chunkSize
// characters. Boundaries prefer paragraph breaks over sentence breaks over
// word breaks so chunks stay readable. Operates on runes so multi-byte
// Vietnamese text is never split mid-character.
func ChunkText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize

		if end < len(runes) {
			window := string(runes[start:end])
			half := chunkSize / 2
			for _, sep := range chunkSeparators {
				idx := strings.LastIndex(window, sep)
				if idx == -1 {
					continue
				}
				breakAt := len([]rune(window[:idx])) + len([]rune(sep))
				if breakAt > half {
					end = start + breakAt
					break
				}
			}
		} else {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
