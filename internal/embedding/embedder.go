package embedding

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations wrap
// failures in models.ErrEmbeddingUnavailable so callers can classify them as
// retriable; the query engine never retries within a single ask.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dim is the dimensionality of produced vectors.
	Dim() int
}

// Single embeds one text.
func Single(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
