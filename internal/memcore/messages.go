package memcore

// QueryMessage is one turn in a retrieve() conversation; the last
// message in the slice is the active query.
type QueryMessage struct {
	Role    string      `json:"role" yaml:"role"`
	Content QueryContent `json:"content" yaml:"content"`
}

// QueryContent accepts either a "text" or a bare "string" field;
// Resolve() normalizes both onto one accessor.
type QueryContent struct {
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
	String string `json:"string,omitempty" yaml:"string,omitempty"`
}

// Resolve returns whichever of Text/String was populated.
func (c QueryContent) Resolve() string {
	if c.Text != "" {
		return c.Text
	}
	return c.String
}

// RetrieveResult is the shape returned by retrieve().
type RetrieveResult struct {
	NeedsRetrieval bool             `json:"needs_retrieval"`
	OriginalQuery  string           `json:"original_query"`
	RewrittenQuery string           `json:"rewritten_query"`
	NextStepQuery  *string          `json:"next_step_query,omitempty"`
	Categories     []ScoredCategory `json:"categories"`
	Items          []ScoredItem     `json:"items"`
	Resources      []ScoredResource `json:"resources"`
}

// MemorizeResult is the shape returned by memorize().
type MemorizeResult struct {
	Resource   Resource         `json:"resource"`
	Items      []MemoryItem     `json:"items"`
	Categories []MemoryCategory `json:"categories"`
	Relations  []CategoryItem   `json:"relations"`
}

// CategoryUpdate records one category whose summary was recomputed as a
// side effect of a CRUD operation.
type CategoryUpdate struct {
	Category MemoryCategory `json:"category"`
	Reason   string         `json:"reason"`
}

// CreateItemResult is the shape returned by create_memory_item.
type CreateItemResult struct {
	MemoryItem      MemoryItem       `json:"memory_item"`
	CategoryUpdates []CategoryUpdate `json:"category_updates"`
}
