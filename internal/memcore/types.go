// Package memcore holds the core memory-service data model: resources,
// memory items, categories, their edges, and the scope tuple that
// partitions every record — plain structs with json/yaml tags, no
// behavior beyond small helpers.
package memcore

import (
	"time"

	"github.com/google/uuid"
)

// Modality enumerates the kinds of artifact memorize can ingest.
type Modality string

const (
	ModalityConversation Modality = "conversation"
	ModalityDocument     Modality = "document"
	ModalityImage        Modality = "image"
	ModalityVideo        Modality = "video"
	ModalityAudio        Modality = "audio"
)

// Scope is the concrete values of the configured scope fields for one
// record or request, e.g. {"user_id": "alice", "agent_id": "assistant-1"}.
type Scope map[string]string

// NewID creates a random UUID string; the prefix is kept for readability
// in logs but is not parsed back out.
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// Resource is one ingested artifact.
type Resource struct {
	ID        string    `json:"id" yaml:"id"`
	URL       string    `json:"url" yaml:"url"`
	Modality  Modality  `json:"modality" yaml:"modality"`
	LocalPath string    `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	Caption   string    `json:"caption,omitempty" yaml:"caption,omitempty"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Scope     Scope     `json:"scope" yaml:"scope"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// MemoryType is the configurable category of extracted memory.
type MemoryType string

const (
	MemoryTypeProfile  MemoryType = "profile"
	MemoryTypeEvent    MemoryType = "event"
	MemoryTypeKnowledge MemoryType = "knowledge"
	MemoryTypeBehavior MemoryType = "behavior"
)

// DefaultMemoryTypes is the default configured memory-type list.
func DefaultMemoryTypes() []MemoryType {
	return []MemoryType{MemoryTypeProfile, MemoryTypeEvent, MemoryTypeKnowledge, MemoryTypeBehavior}
}

// MemoryItem is one atomic extracted memory.
type MemoryItem struct {
	ID         string     `json:"id" yaml:"id"`
	ResourceID *string    `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	MemoryType MemoryType `json:"memory_type" yaml:"memory_type"`
	Summary    string     `json:"summary" yaml:"summary"`
	Embedding  []float32  `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Scope      Scope      `json:"scope" yaml:"scope"`
	// Hits counts retrieval reinforcement for the salience ranking.
	Hits      int       `json:"hits" yaml:"hits"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// MemoryCategory is a named topical bucket with a rolling LLM-maintained summary.
type MemoryCategory struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Summary     *string   `json:"summary" yaml:"summary"`
	Embedding   []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Scope       Scope     `json:"scope" yaml:"scope"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// CategoryItem is a directed edge between one Item and one Category.
type CategoryItem struct {
	ID         string    `json:"id" yaml:"id"`
	ItemID     string    `json:"item_id" yaml:"item_id"`
	CategoryID string    `json:"category_id" yaml:"category_id"`
	Scope      Scope     `json:"scope" yaml:"scope"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// ScoredItem pairs a MemoryItem with its retrieval score (RAG mode only).
type ScoredItem struct {
	Item  MemoryItem `json:"item"`
	Score float64    `json:"score"`
}

// ScoredCategory pairs a MemoryCategory with its retrieval score.
type ScoredCategory struct {
	Category MemoryCategory `json:"category"`
	Score    float64        `json:"score"`
}

// ScoredResource pairs a Resource with its retrieval score.
type ScoredResource struct {
	Resource Resource `json:"resource"`
	Score    float64  `json:"score"`
}
