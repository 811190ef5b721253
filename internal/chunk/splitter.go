// Package chunk splits plain text into overlapping pieces sized for
// embedding models.
package chunk

import (
	"fmt"
	"strings"
)

// separators from coarsest to finest. Splitting prefers paragraph breaks,
// then lines, then words, then raw runes.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into pieces of at most Size runes with Overlap runes
// carried between consecutive pieces.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter validates the geometry and returns a Splitter. Overlap must
// be strictly smaller than Size or splitting could never advance.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d with size %d", overlap, size)
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split returns the chunks of text. Empty and whitespace-only input yields
// no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := s.split(text, 0)

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// split recursively divides text using progressively finer separators
// until every fragment fits, then merges fragments back up to Size with
// Overlap between neighbors.
func (s *Splitter) split(text string, sepIdx int) []string {
	if runeLen(text) <= s.Size {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.hardSplit(text)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.hardSplit(text)
	}

	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return s.split(text, sepIdx+1)
	}

	var fragments []string
	for _, part := range parts {
		if runeLen(part) > s.Size {
			fragments = append(fragments, s.split(part, sepIdx+1)...)
		} else if part != "" {
			fragments = append(fragments, part)
		}
	}
	return s.merge(fragments)
}

// merge packs fragments into chunks no longer than Size, seeding each new
// chunk with the tail of the previous one for context continuity.
func (s *Splitter) merge(fragments []string) []string {
	var chunks []string
	var current strings.Builder

	for _, frag := range fragments {
		if current.Len() > 0 && runeLen(current.String())+runeLen(frag) > s.Size {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			if s.Overlap > 0 {
				seed := tail(chunk, s.Overlap)
				// Skip the seed when it would push the next chunk past Size.
				if runeLen(seed)+runeLen(frag) <= s.Size {
					current.WriteString(seed)
				}
			}
		}
		current.WriteString(frag)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardSplit cuts by rune count when no separator helps, keeping Overlap
// runes between windows.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.Size - s.Overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// tail returns the last n runes of s, trimmed to a word boundary when one
// exists so overlaps do not start mid-word.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	t := string(runes[len(runes)-n:])
	if idx := strings.IndexAny(t, " \n"); idx >= 0 && idx+1 < len(t) {
		return t[idx+1:]
	}
	return t
}
