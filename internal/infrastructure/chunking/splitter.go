package chunking

import "strings"

// separators ordered from coarsest to finest. The empty string means a hard
// rune-level slice and is the fallback for unsplittable runs.
var separators = []string{"\n\n", "\n", " ", ""}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split breaks text into segments of at most ChunkSize runes, preferring the
// coarsest separator that keeps segments within the bound and overlapping
// consecutive segments by up to Overlap runes. Empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := s.splitRecursive(text, separators)
	return s.merge(pieces)
}

// splitRecursive cuts text with the first separator present, recursing with
// finer separators into any piece that still exceeds ChunkSize.
func (s *Splitter) splitRecursive(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	rest := seps
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = sliceRunes(text, s.ChunkSize)
	} else {
		parts = splitKeepSeparator(text, sep)
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len([]rune(part)) <= s.ChunkSize || len(rest) == 0 {
			out = append(out, part)
			continue
		}
		out = append(out, s.splitRecursive(part, rest)...)
	}
	return out
}

// merge packs adjacent pieces into chunks bounded by ChunkSize, carrying a
// tail of at most Overlap runes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out    []string
		window []string
		winLen int
		hasNew bool
	)

	flush := func() {
		if !hasNew {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, ""))
		if chunk != "" {
			out = append(out, chunk)
		}
		hasNew = false
		// Keep a suffix of the window, at most Overlap runes, for the next chunk.
		for winLen > s.Overlap && len(window) > 0 {
			winLen -= len([]rune(window[0]))
			window = window[1:]
		}
	}

	for _, piece := range pieces {
		pieceLen := len([]rune(piece))
		if winLen+pieceLen > s.ChunkSize {
			flush()
			// The retained overlap plus an oversized piece may still not fit.
			for winLen+pieceLen > s.ChunkSize && len(window) > 0 {
				winLen -= len([]rune(window[0]))
				window = window[1:]
			}
		}
		window = append(window, piece)
		winLen += pieceLen
		hasNew = true
	}
	flush()
	return out
}

func splitKeepSeparator(text, sep string) []string {
	split := strings.Split(text, sep)
	out := make([]string, 0, len(split))
	for i, part := range split {
		if i < len(split)-1 {
			part += sep
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sliceRunes(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
