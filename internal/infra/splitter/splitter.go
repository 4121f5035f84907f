package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// LengthFunc measures a piece of text. Chunk sizes are expressed in its unit.
type LengthFunc func(string) int

// RuneLength counts characters.
func RuneLength(s string) int { return utf8.RuneCountInString(s) }

// RecursiveSplitter tries paragraph, line, word and finally character
// boundaries until every piece fits in ChunkSize.
type RecursiveSplitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
	Length     LengthFunc
}

// Split cuts text into chunks of at most ChunkSize where boundaries allow.
func (s *RecursiveSplitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return s.split(text, seps)
}

func (s *RecursiveSplitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var next []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			next = seps[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range splitOn(text, sep) {
		if s.length(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, mergeSplits(good, sep, s.ChunkSize, s.Overlap, s.length)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, mergeSplits(good, sep, s.ChunkSize, s.Overlap, s.length)...)
	}
	return final
}

func (s *RecursiveSplitter) length(text string) int {
	if s.Length != nil {
		return s.Length(text)
	}
	return RuneLength(text)
}

// CharacterSplitter splits on a single separator and merges the pieces up to
// ChunkSize. Pieces longer than ChunkSize are kept whole.
type CharacterSplitter struct {
	ChunkSize int
	Overlap   int
	Separator string
	Length    LengthFunc
}

// Split cuts text on the separator.
func (s *CharacterSplitter) Split(text string) []string {
	sep := s.Separator
	if sep == "" {
		sep = "\n\n"
	}
	length := s.Length
	if length == nil {
		length = RuneLength
	}
	return mergeSplits(splitOn(text, sep), sep, s.ChunkSize, s.Overlap, length)
}

// Factory builds splitters for the form's split methods.
type Factory struct {
	Length LengthFunc
}

// NewFactory constructs a factory measuring chunk sizes with length, or in
// characters when length is nil.
func NewFactory(length LengthFunc) *Factory {
	return &Factory{Length: length}
}

// NewSplitter returns the splitter for method.
func (f *Factory) NewSplitter(method evalconfig.SplitMethod, chunkSize, overlap int) (evaluator.Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, chunkSize)
	}
	switch method {
	case evalconfig.SplitRecursive:
		return &RecursiveSplitter{ChunkSize: chunkSize, Overlap: overlap, Length: f.Length}, nil
	case evalconfig.SplitCharacter:
		return &CharacterSplitter{ChunkSize: chunkSize, Overlap: overlap, Length: f.Length}, nil
	default:
		return nil, fmt.Errorf("unsupported split method %q", method)
	}
}

var (
	_ evaluator.Splitter        = (*RecursiveSplitter)(nil)
	_ evaluator.Splitter        = (*CharacterSplitter)(nil)
	_ evaluator.SplitterFactory = (*Factory)(nil)
)

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, part := range strings.Split(text, sep) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// mergeSplits packs pieces into chunks no longer than size, carrying up to
// overlap units of trailing context into the next chunk.
func mergeSplits(pieces []string, sep string, size, overlap int, length LengthFunc) []string {
	sepLen := length(sep)
	var (
		docs    []string
		current []string
		total   int
	)
	joined := func() {
		if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
			docs = append(docs, doc)
		}
	}
	for _, piece := range pieces {
		l := length(piece)
		if total+l+joinCost(len(current), sepLen) > size && len(current) > 0 {
			joined()
			for total > overlap || (total > 0 && total+l+joinCost(len(current), sepLen) > size) {
				total -= length(current[0]) + joinCost(len(current)-1, sepLen)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l + joinCost(len(current)-1, sepLen)
	}
	if len(current) > 0 {
		joined()
	}
	return docs
}

// joinCost is the separator length added when appending to n pieces.
func joinCost(n, sepLen int) int {
	if n > 0 {
		return sepLen
	}
	return 0
}
