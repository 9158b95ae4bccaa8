package chunking

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter(1000, 200)
	if chunks := s.Split(""); chunks != nil {
		t.Fatalf("expected nil chunks for empty input, got %v", chunks)
	}
	if chunks := s.Split("   \n\n  "); chunks != nil {
		t.Fatalf("expected nil chunks for whitespace input, got %v", chunks)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("one short paragraph")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "one short paragraph" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird one."
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 40 {
			t.Fatalf("chunk exceeds size bound: %q", c)
		}
	}
	if chunks[0] != "first paragraph here." {
		t.Fatalf("expected chunk aligned to paragraph break, got %q", chunks[0])
	}
}

func TestSplitSizeAndOverlapBounds(t *testing.T) {
	s := NewSplitter(1000, 200)
	var b strings.Builder
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&b, "sentence %03d of the uploaded source document. ", i)
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}
	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 1000 {
			t.Fatalf("chunk %d length %d exceeds 1000", i, n)
		}
	}
	for i := 1; i < len(chunks); i++ {
		overlap := sharedBoundary(chunks[i-1], chunks[i])
		if overlap > 200 {
			t.Fatalf("chunks %d/%d overlap %d exceeds 200", i-1, i, overlap)
		}
	}
}

func TestSplitUnsplittableLongRun(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("x", 173)
	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatalf("expected chunks for long unsplittable input")
	}
	var total int
	for _, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("hard-sliced chunk exceeds bound: %d", len(c))
		}
		total += len(c)
	}
	if total < 173 {
		t.Fatalf("hard slicing lost content: %d < 173", total)
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(80, 20)
	text := "alpha beta gamma.\ndelta epsilon zeta.\n\neta theta iota kappa lambda mu nu xi omicron pi rho."
	first := s.Split(text)
	second := s.Split(text)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic chunk %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestNewSplitterNormalizesArguments(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != 1000 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults: size=%d overlap=%d", s.ChunkSize, s.Overlap)
	}
	s = NewSplitter(100, 100)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap must stay below chunk size, got %d/%d", s.Overlap, s.ChunkSize)
	}
}

// sharedBoundary returns the length of the longest suffix of a that is also a
// prefix of b.
func sharedBoundary(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}
