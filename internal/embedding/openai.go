package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/contractiq/backend/internal/models"
)

const defaultModel = "text-embedding-3-small"

// OpenAI embeds text through the OpenAI embeddings API, requesting vectors
// truncated to the store's fixed dimensionality.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAI(apiKey, model string, dim int) *OpenAI {
	if model == "" {
		model = defaultModel
	}
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}
}

func (o *OpenAI) Dim() int { return o.dim }

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Batch in groups of 100 for API limits.
	const batchSize = 100
	out := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(o.model),
			Input:      texts[i:end],
			Dimensions: o.dim,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: embed batch %d: %v", models.ErrEmbeddingUnavailable, i/batchSize, err)
		}
		if len(resp.Data) != end-i {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrEmbeddingUnavailable, end-i, len(resp.Data))
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

var _ Embedder = (*OpenAI)(nil)
