package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/vaultvec/internal/apperr"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = string(openai.SmallEmbedding3)
	// DefaultDimensions matches DefaultModel.
	DefaultDimensions = 1536
)

// OpenAIConfig configures the OpenAI-compatible adapter. BaseURL allows
// any server speaking the /embeddings API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAI embeds text through an OpenAI-compatible API.
type OpenAI struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAI creates an adapter. A missing API key is a configuration error.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding: openai api key: %w", apperr.ErrConfigurationMissing)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAI{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: %w: no embedding data returned", apperr.ErrEmbedding)
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request and reorders the response by
// its index field.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: o.model,
	}
	// Only the v3 models accept a reduced output size.
	if strings.HasPrefix(string(o.model), "text-embedding-3") {
		req.Dimensions = o.dimensions
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, apperr.Embedding("embedding: openai", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: %w: got %d vectors for %d inputs", apperr.ErrEmbedding, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured output size.
func (o *OpenAI) Dimensions() int { return o.dimensions }

// ModelName returns the model identifier.
func (o *OpenAI) ModelName() string { return string(o.model) }
