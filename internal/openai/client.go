package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel embeds lesson chunks and queries
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions matches the vector(1536) column
	DefaultEmbeddingDimensions = 1536
	// MaxInputRunes caps a single embedding input below the model's token limit
	MaxInputRunes = 24000
)

var (
	// ErrEmptyText is returned when text is empty after normalization
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding does not match the configured width
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI is the raw embeddings call the Client validates around
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Config selects the endpoint, credentials and models.
type Config struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint; empty uses api.openai.com
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	TranscriptionModel  string
}

// Client embeds lesson chunks and search queries
type Client struct {
	api        EmbeddingAPI
	dimensions int
}

// NewClientWithConfig creates a Client backed by the hosted API.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        newAdapter(cfg),
		dimensions: dimensions,
	}
}

// Dimensions is the vector width every embedding must have.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding embeds text after collapsing whitespace and truncating
// it to MaxInputRunes.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	input := normalizeInput(text)
	if input == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}

	return embedding, nil
}

func normalizeInput(text string) string {
	input := strings.Join(strings.Fields(text), " ")
	runes := []rune(input)
	if len(runes) > MaxInputRunes {
		input = strings.TrimSpace(string(runes[:MaxInputRunes]))
	}
	return input
}

// OpenAIAdapter calls the hosted embeddings and audio endpoints
type OpenAIAdapter struct {
	client             *openai.Client
	model              openai.EmbeddingModel
	transcriptionModel string
}

func newAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	transcriptionModel := cfg.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = DefaultTranscriptionModel
	}

	return &OpenAIAdapter{
		client:             openai.NewClientWithConfig(clientCfg),
		model:              model,
		transcriptionModel: transcriptionModel,
	}
}

// CreateEmbeddings requests a single embedding
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}
