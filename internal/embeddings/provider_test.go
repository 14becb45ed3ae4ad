package embeddings

import (
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Provider             = (*TEIProvider)(nil)
	_ Provider             = (*GeminiProvider)(nil)
	_ Provider             = (*HashProvider)(nil)
	_ Provider             = (*FastEmbedProvider)(nil)
	_ vectorstore.Embedder = Provider(nil)
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ProviderConfig
		wantErr   error
		wantModel string
		wantDim   int
	}{
		{
			name:      "tei provider with valid config",
			cfg:       ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
			wantModel: "BAAI/bge-small-en-v1.5",
			wantDim:   384,
		},
		{
			name:    "tei provider without base URL",
			cfg:     ProviderConfig{Provider: "tei", Model: "BAAI/bge-small-en-v1.5"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "gemini provider without key",
			cfg:     ProviderConfig{Provider: "gemini"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:      "hash provider",
			cfg:       ProviderConfig{Provider: "hash", Dimension: 64},
			wantModel: "hash-64",
			wantDim:   64,
		},
		{
			name:      "provider name is case insensitive",
			cfg:       ProviderConfig{Provider: "HASH"},
			wantModel: "hash-256",
			wantDim:   DefaultHashDimension,
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "unknown"},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			defer provider.Close()
			assert.Equal(t, tt.wantModel, provider.Model())
			assert.Equal(t, tt.wantDim, provider.Dimension())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"fast-bge-small-zh-v1.5", 512},
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"intfloat/multilingual-e5-base", 768},
		{"intfloat/multilingual-e5-large", 1024},
		{"gemini-embedding-001", 3072},
		{"text-embedding-004", 768},
		{"unknown-model", 384},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
