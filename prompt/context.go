// Package prompt assembles the final prompt sent upstream from base
// instructions, tenant rules and bounded context sections.
package prompt

// Bounds applied to every context section.
const (
	MaxFieldRunes   = 500
	MaxArrayItems   = 5
	MaxCatalogItems = 15
	MaxHistoryTurns = 5
)

// Rule is a tenant-specific instruction. Higher Priority comes first.
type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Text     string `yaml:"text" json:"text"`
	Priority int    `yaml:"priority" json:"priority"`
}

// CatalogItem is a product excerpt. Items are expected in relevance order.
type CatalogItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Turn is one message of conversation history, oldest first.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Order is a fact about a customer order.
type Order struct {
	ID     string   `json:"id"`
	Status string   `json:"status,omitempty"`
	Total  string   `json:"total,omitempty"`
	Items  []string `json:"items,omitempty"`
}

// Context holds the optional sections of a prompt. Every section is
// truncated on assembly; callers may pass unbounded data.
type Context struct {
	CustomInstructions string            `json:"custom_instructions,omitempty"`
	Catalog            []CatalogItem     `json:"catalog,omitempty"`
	History            []Turn            `json:"history,omitempty"`
	Orders             []Order           `json:"orders,omitempty"`
	Customer           map[string]string `json:"customer,omitempty"`
	Query              string            `json:"query"`
}
