package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Embedding: EmbeddingConfig{
			Dimension: 768,
		},
		Vector: VectorConfig{Address: "localhost:6334"},
		Store:  StoreConfig{DBPath: "data/docai.db"},
		Upload: UploadConfig{
			MaxSizeBytes:      50 * 1024 * 1024,
			AllowedExtensions: []string{"pdf", "docx", "txt", "md"},
		},
		Chunking: ChunkingConfig{
			Strategy:          "hierarchical",
			HierarchicalSizes: []int{2000, 1000, 500},
			Overlap:           100,
			RecursiveSize:     1000,
			RecursiveOverlap:  200,
		},
		Query: QueryConfig{TopK: 5, ExpansionCount: 3, HistoryLimit: 10},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"empty db path", func(c *Config) { c.Store.DBPath = "" }},
		{"empty vector address", func(c *Config) { c.Vector.Address = "" }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"zero max size", func(c *Config) { c.Upload.MaxSizeBytes = 0 }},
		{"no extensions", func(c *Config) { c.Upload.AllowedExtensions = nil }},
		{"unknown strategy", func(c *Config) { c.Chunking.Strategy = "semantic" }},
		{"no level sizes", func(c *Config) { c.Chunking.HierarchicalSizes = nil }},
		{"overlap exceeds size", func(c *Config) { c.Chunking.Overlap = 500 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"recursive overlap exceeds size", func(c *Config) { c.Chunking.RecursiveOverlap = 1000 }},
		{"zero top_k", func(c *Config) { c.Query.TopK = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAllowedExtension(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.AllowedExtension("report.pdf"))
	assert.True(t, cfg.AllowedExtension("REPORT.PDF"))
	assert.True(t, cfg.AllowedExtension("notes.md"))
	assert.True(t, cfg.AllowedExtension("archive.backup.txt"))

	assert.False(t, cfg.AllowedExtension("binary.exe"))
	assert.False(t, cfg.AllowedExtension("noextension"))
	assert.False(t, cfg.AllowedExtension("trailingdot."))
	assert.False(t, cfg.AllowedExtension(""))
}
