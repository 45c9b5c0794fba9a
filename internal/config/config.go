// Package config loads the memoryd configuration surface from YAML,
// following a Load/LoadDefault/defaults() pattern.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level configuration recognized by memoryd.
type Config struct {
	LLMProfiles map[string]ProviderProfile `yaml:"llm_profiles"`
	Blob        BlobConfig                 `yaml:"blob_config"`
	Database    DatabaseConfig             `yaml:"database_config"`
	Memorize    MemorizeConfig             `yaml:"memorize_config"`
	Retrieve    RetrieveConfig             `yaml:"retrieve_config"`
	User        UserConfig                 `yaml:"user_config"`
}

// ProviderProfile is one named LLM profile bundle.
type ProviderProfile struct {
	Provider          string            `yaml:"provider"`
	BaseURL           string            `yaml:"base_url"`
	APIKey            string            `yaml:"api_key"`
	ChatModel         string            `yaml:"chat_model"`
	EmbedModel        string            `yaml:"embed_model"`
	ClientBackend     string            `yaml:"client_backend"` // "sdk" | "http"
	EndpointOverrides map[string]string `yaml:"endpoint_overrides"`
	EmbedBatchSize    int               `yaml:"embed_batch_size"`
}

// BlobConfig configures the resource fetcher's local blob directory.
type BlobConfig struct {
	ResourcesDir string `yaml:"resources_dir"`
}

// MetadataStoreProvider names a storage backend.
type MetadataStoreProvider string

const (
	StoreInMemory              MetadataStoreProvider = "inmemory"
	StoreRelational            MetadataStoreProvider = "relational"
	StoreRelationalVectorIndex MetadataStoreProvider = "relational+vector"
)

// DDLMode controls whether the relational provider creates or merely
// validates its schema on startup.
type DDLMode string

const (
	DDLCreate   DDLMode = "create"
	DDLValidate DDLMode = "validate"
)

// MetadataStoreConfig configures the repository backend.
type MetadataStoreConfig struct {
	Provider MetadataStoreProvider `yaml:"provider"`
	DSN      string                `yaml:"dsn"`
	DDLMode  DDLMode               `yaml:"ddl_mode"`
}

// VectorIndexProvider names the vector-index engine used by the
// relational+vector-index storage provider.
type VectorIndexProvider string

const (
	VectorBruteForce VectorIndexProvider = "bruteforce"
	VectorNative     VectorIndexProvider = "native"
	VectorNone       VectorIndexProvider = "none"
)

// VectorIndexConfig configures the optional native vector index.
type VectorIndexConfig struct {
	Provider VectorIndexProvider `yaml:"provider"`
	DSN      string              `yaml:"dsn"`
}

// DatabaseConfig groups the metadata store and optional vector index.
type DatabaseConfig struct {
	MetadataStore MetadataStoreConfig `yaml:"metadata_store"`
	VectorIndex   *VectorIndexConfig  `yaml:"vector_index"`
}

// CategorySeed is one entry of the configured default category list
// bootstrapped lazily on first use within a scope.
type CategorySeed struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	TargetLength  int    `yaml:"target_length"`
	SummaryPrompt string `yaml:"summary_prompt"`
}

// MemorizeConfig configures the memorize pipeline's defaults.
type MemorizeConfig struct {
	CategoryAssignThreshold         float64           `yaml:"category_assign_threshold"`
	MultimodalPreprocessPrompts     map[string]string `yaml:"multimodal_preprocess_prompts"`
	PreprocessLLMProfile            string            `yaml:"preprocess_llm_profile"`
	MemoryTypes                     []string          `yaml:"memory_types"`
	MemoryTypePrompts               map[string]string `yaml:"memory_type_prompts"`
	MemoryExtractLLMProfile         string            `yaml:"memory_extract_llm_profile"`
	MemoryCategories                []CategorySeed    `yaml:"memory_categories"`
	DefaultCategorySummaryPrompt    string            `yaml:"default_category_summary_prompt"`
	DefaultCategorySummaryTargetLen int               `yaml:"default_category_summary_target_length"`
	CategoryUpdateLLMProfile        string            `yaml:"category_update_llm_profile"`
}

// SeedFor returns the configured category seed matching name
// (case-insensitive, whitespace-trimmed), if any. Seeds are applied
// lazily: a category is materialized from its seed the first time a
// scope references it.
func (c MemorizeConfig) SeedFor(name string) (CategorySeed, bool) {
	norm := strings.ToLower(strings.TrimSpace(name))
	for _, s := range c.MemoryCategories {
		if strings.ToLower(strings.TrimSpace(s.Name)) == norm {
			return s, true
		}
	}
	return CategorySeed{}, false
}

// RetrieveSectionConfig configures one recall section (category/item/resource).
type RetrieveSectionConfig struct {
	Enabled bool `yaml:"enabled"`
	TopK    int  `yaml:"top_k"`
}

// SalienceConfig configures the item salience composite.
// Defaults (0.7/0.2/0.1) favor similarity over recency and reinforcement
// (see DESIGN.md).
type SalienceConfig struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	Gamma float64 `yaml:"gamma"`
}

// RetrieveMethod selects the recall algorithm.
type RetrieveMethod string

const (
	RetrieveMethodRAG RetrieveMethod = "rag"
	RetrieveMethodLLM RetrieveMethod = "llm"
)

// RetrieveConfig configures the retrieve engines.
type RetrieveConfig struct {
	Method                  RetrieveMethod        `yaml:"method"`
	RouteIntention          bool                  `yaml:"route_intention"`
	Category                RetrieveSectionConfig `yaml:"category"`
	Item                    RetrieveSectionConfig `yaml:"item"`
	Resource                RetrieveSectionConfig `yaml:"resource"`
	SufficiencyCheck        bool                  `yaml:"sufficiency_check"`
	SufficiencyCheckPrompt  string                `yaml:"sufficiency_check_prompt"`
	SufficiencyCheckProfile string                `yaml:"sufficiency_check_llm_profile"`
	LLMRankingLLMProfile    string                `yaml:"llm_ranking_llm_profile"`
	Salience                SalienceConfig        `yaml:"salience"`
}

// UserConfig declares the scope tuple's field set.
type UserConfig struct {
	Model []string `yaml:"model"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		LLMProfiles: map[string]ProviderProfile{},
		Blob:        BlobConfig{ResourcesDir: "./data/resources"},
		Database: DatabaseConfig{
			MetadataStore: MetadataStoreConfig{Provider: StoreInMemory, DDLMode: DDLCreate},
		},
		Memorize: MemorizeConfig{
			CategoryAssignThreshold:         0.5,
			MemoryTypes:                     []string{"profile", "event", "knowledge", "behavior"},
			DefaultCategorySummaryTargetLen: 500,
		},
		Retrieve: RetrieveConfig{
			Method:         RetrieveMethodRAG,
			RouteIntention: true,
			Category:       RetrieveSectionConfig{Enabled: true, TopK: 3},
			Item:           RetrieveSectionConfig{Enabled: true, TopK: 5},
			Resource:       RetrieveSectionConfig{Enabled: true, TopK: 3},
			Salience:       SalienceConfig{Alpha: 0.7, Beta: 0.2, Gamma: 0.1},
		},
		User: UserConfig{Model: []string{"user_id"}},
	}
}

// Load reads a YAML configuration file at path and returns a Config,
// validating that a "default" llm profile is present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.LLMProfiles == nil {
		cfg.LLMProfiles = map[string]ProviderProfile{}
	}
	if _, ok := cfg.LLMProfiles["default"]; !ok {
		return nil, fmt.Errorf("config: llm_profiles must include a %q entry", "default")
	}

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults with no
// llm profiles configured — callers must register at least one before
// using MemoryService.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}
