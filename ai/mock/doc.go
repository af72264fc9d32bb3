// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the text, or fixed vectors supplied with NewMockEmbedderWithVectors so that
// tests can reason about distances exactly.
//
//	embedder := mock.NewMockEmbedderWithVectors(map[string][]float32{
//	    "Subject: invoice": {1, 0, 0},
//	})
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
package mock
