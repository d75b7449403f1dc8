package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("Collapses Whitespace", func(t *testing.T) {
		assert.Equal(t, "a b c", Normalize("a   b\t\tc"))
	})

	t.Run("Collapses Newlines", func(t *testing.T) {
		assert.Equal(t, "line one\nline two", Normalize("line one\n\n\nline two"))
	})

	t.Run("Trims", func(t *testing.T) {
		assert.Equal(t, "hello", Normalize("  \n hello \n "))
	})

	t.Run("Windows Line Endings", func(t *testing.T) {
		assert.Equal(t, "a\nb", Normalize("a\r\n\r\nb"))
	})
}

func TestChunk(t *testing.T) {
	t.Run("Empty Input", func(t *testing.T) {
		assert.Nil(t, Chunk("", 100, 20))
		assert.Nil(t, Chunk("   \n  ", 100, 20))
	})

	t.Run("Invalid Parameters", func(t *testing.T) {
		assert.Nil(t, Chunk("some text", 0, 0))
		assert.Nil(t, Chunk("some text", 100, 100))
		assert.Nil(t, Chunk("some text", 50, 100))
	})

	t.Run("Short Input Single Chunk", func(t *testing.T) {
		chunks := Chunk("This is a short paragraph.", 100, 20)
		require.Len(t, chunks, 1)
		assert.Equal(t, "This is a short paragraph.", chunks[0])
	})

	t.Run("Sentence Boundary Cut", func(t *testing.T) {
		// Break sits past the midpoint, so the cut lands on the period.
		first := strings.Repeat("a", 70) + "."
		second := strings.Repeat("b", 200)
		chunks := Chunk(first+" "+second, 100, 20)
		require.GreaterOrEqual(t, len(chunks), 2)
		assert.Equal(t, first, chunks[0])
		assert.True(t, strings.HasPrefix(chunks[1], "b"))
	})

	t.Run("Early Break Ignored", func(t *testing.T) {
		// The only period is before the midpoint; expect a plain window cut
		// with overlap instead.
		input := strings.Repeat("a", 20) + "." + strings.Repeat("b", 300)
		chunks := Chunk(input, 100, 20)
		require.GreaterOrEqual(t, len(chunks), 2)
		assert.Len(t, chunks[0], 100)
	})

	t.Run("Length Bounded", func(t *testing.T) {
		input := strings.Repeat("word seven.", 500)
		for _, c := range Chunk(input, 120, 30) {
			assert.LessOrEqual(t, len(c), 120)
			assert.NotEmpty(t, strings.TrimSpace(c))
		}
	})

	t.Run("Terminates Without Break Points", func(t *testing.T) {
		input := strings.Repeat("x", 5000)
		chunks := Chunk(input, 1000, 200)
		// Cursor advances by targetSize-overlap=800 per window.
		assert.LessOrEqual(t, len(chunks), 7)
		assert.NotEmpty(t, chunks)
	})

	t.Run("2500 Chars Yields Three Chunks", func(t *testing.T) {
		input := strings.Repeat("x", 2500)
		chunks := Chunk(input, 1000, 200)
		require.Len(t, chunks, 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 1000)
		}
		// Windows 0-1000, 800-1800, 1600-2500 cover the whole normalized input.
		assert.Equal(t, input[:1000], chunks[0])
		assert.Equal(t, input[800:1800], chunks[1])
		assert.Equal(t, input[1600:], chunks[2])
	})

	t.Run("Coverage With Overlap", func(t *testing.T) {
		// Every byte of the normalized input appears in at least one chunk.
		input := strings.Repeat("m", 3000)
		norm := Normalize(input)
		chunks := Chunk(input, 500, 100)
		covered := 0
		for i, c := range chunks {
			if i == 0 {
				covered = len(c)
				continue
			}
			covered += len(c) - 100
		}
		assert.GreaterOrEqual(t, covered, len(norm))
	})
}
