package splitter

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
)

func TestRecursiveSplitter(t *testing.T) {
	text := "aaaa bbbb cccc\n\ndddd"
	tests := []struct {
		name    string
		overlap int
		want    []string
	}{
		{name: "no overlap", overlap: 0, want: []string{"aaaa bbbb", "cccc", "dddd"}},
		{name: "with overlap", overlap: 4, want: []string{"aaaa bbbb", "bbbb cccc", "dddd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &RecursiveSplitter{ChunkSize: 10, Overlap: tt.overlap}
			require.Equal(t, tt.want, s.Split(text))
		})
	}
}

func TestRecursiveSplitterFallsBackToCharacters(t *testing.T) {
	s := &RecursiveSplitter{ChunkSize: 3}
	require.Equal(t, []string{"abc", "def", "g"}, s.Split("abcdefg"))
}

func TestCharacterSplitter(t *testing.T) {
	s := &CharacterSplitter{ChunkSize: 6}
	require.Equal(t, []string{"p1\n\np2", "p3"}, s.Split("p1\n\np2\n\np3"))

	long := &CharacterSplitter{ChunkSize: 2}
	require.Equal(t, []string{"longer", "x"}, long.Split("longer\n\nx"))
}

func TestSplitEmptyText(t *testing.T) {
	require.Empty(t, (&RecursiveSplitter{ChunkSize: 5}).Split(""))
	require.Empty(t, (&CharacterSplitter{ChunkSize: 5}).Split("   "))
}

func TestFactory(t *testing.T) {
	f := NewFactory(nil)
	s, err := f.NewSplitter(evalconfig.SplitRecursive, 100, 10)
	require.NoError(t, err)
	require.IsType(t, &RecursiveSplitter{}, s)

	s, err = f.NewSplitter(evalconfig.SplitCharacter, 100, 0)
	require.NoError(t, err)
	require.IsType(t, &CharacterSplitter{}, s)

	_, err = f.NewSplitter(evalconfig.SplitRecursive, 10, 10)
	require.Error(t, err)
	_, err = f.NewSplitter("Markdown", 10, 0)
	require.Error(t, err)
}

func TestEstimate(t *testing.T) {
	require.Equal(t, 2, estimate("abcdefgh"))
	require.Equal(t, 3, estimate("a b c"))
}

func TestTiktokenCounterEmpty(t *testing.T) {
	c := NewTiktokenCounter("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Zero(t, c.Count(""))
}
