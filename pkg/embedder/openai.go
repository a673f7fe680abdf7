package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/sync/errgroup"

	"github.com/docaihq/docai/pkg/domain"
)

const (
	defaultTimeout = 30 * time.Second

	// Sub-batch size for EmbedBatch; batches run concurrently.
	batchSize        = 64
	batchConcurrency = 4
)

// OpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAI(baseURL, apiKey, model string, timeout time.Duration) *OpenAIEmbedder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrEmbeddingFailed)
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch embeds texts in fixed-size sub-batches with bounded
// concurrency. Output order matches input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()

			resp, err := e.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
				Model: openai.EmbeddingModel(e.model),
				Input: openai.EmbeddingNewParamsInputUnion{
					OfArrayOfStrings: texts[start:end],
				},
			})
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
			}
			if len(resp.Data) != end-start {
				return fmt.Errorf("%w: got %d embeddings for %d inputs", domain.ErrEmbeddingFailed, len(resp.Data), end-start)
			}
			for _, item := range resp.Data {
				vectors[start+int(item.Index)] = toFloat32(item.Embedding)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
