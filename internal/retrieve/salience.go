package retrieve

import (
	"time"

	"github.com/corewell/memoryd/internal/config"
)

// recency maps elapsed time since updatedAt onto (0, 1], decaying as the
// record ages. The exact decay shape is an explicit choice (see
// DESIGN.md): hour-scaled reciprocal decay.
func recency(now, updatedAt time.Time) float64 {
	hours := now.Sub(updatedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return 1 / (1 + hours)
}

// salience composites cosine similarity with recency and reinforcement
// (hit count): score = alpha*cosine + beta*recency + gamma*hits.
func salience(cfg config.SalienceConfig, cosine float64, now, updatedAt time.Time, hits int) float64 {
	return cfg.Alpha*cosine + cfg.Beta*recency(now, updatedAt) + cfg.Gamma*float64(hits)
}
