package domain

// KeyPrefix namespaces every key written to the shared key-value store.
const KeyPrefix = "docchat:"

// PipelineConfig holds ingestion and retrieval tuning shared by all sessions.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// DefaultPipelineConfig mirrors the classic recursive splitter defaults (1000/20)
// and the usual four retrieved passages.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize:    1000,
		ChunkOverlap: 20,
		TopK:         4,
	}
}
