package ingestion_engine

// IngestConfig tunes the ingestion pipeline.
//
// TargetTokens:   approximate tokens per chunk.
// OverlapTokens:  token overlap between consecutive chunks within one
//                 anchor unit; overlap never crosses a page/segment
//                 boundary, so every chunk keeps a single anchor.
// BatchSize:      chunks embedded per provider request.
// MaxAttempts:    retry budget for transient provider failures.
// Workers:        concurrent ingestion jobs across distinct files.
// EmbedRPS:       rate cap on embedding provider calls.
type IngestConfig struct {
	TargetTokens  int
	OverlapTokens int
	BatchSize     int
	MaxAttempts   int
	Workers       int
	EmbedRPS      float64
}

func (c *IngestConfig) withDefaults() IngestConfig {
	out := *c
	if out.TargetTokens <= 0 {
		out.TargetTokens = 400
	}
	if out.OverlapTokens < 0 || out.OverlapTokens >= out.TargetTokens {
		out.OverlapTokens = out.TargetTokens / 8
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 4
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.EmbedRPS <= 0 {
		out.EmbedRPS = 5
	}
	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
