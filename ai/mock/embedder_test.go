package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	a, err := m.EmbedText(ctx, "quarterly report")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "quarterly report")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "lunch plans")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, Dimensions)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := generateDeterministicVector("hello", Dimensions)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder_FixedVectors(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedderWithVectors(map[string][]float32{"known": {1, 0, 0}})

	vectors, err := m.EmbedTexts(ctx, []string{"known", "unknown"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Len(t, vectors[1], Dimensions)
}

func TestMockEmbedder_CustomFuncAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("unavailable")
	}

	_, err := m.EmbedTexts(ctx, []string{"x"})
	require.Error(t, err)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(ctx, []string{"x"})
	assert.NoError(t, err)
}
