package models

import "strings"

// ToolRecord is one entry in the school knowledge base describing a tool,
// facility or resource students can use.
type ToolRecord struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	Availability     string   `json:"availability"`
	TrainingRequired bool     `json:"training_required"`
	Contact          string   `json:"contact"`
	Keywords         []string `json:"keywords"`
}

// SearchText returns the text a record is matched and embedded against.
func (t *ToolRecord) SearchText() string {
	return t.Name + " " + t.Category + " " + t.Description + " " + strings.Join(t.Keywords, " ")
}

// ScoredTool is a ToolRecord with a relevance score attached, as returned by
// search and chat responses.
type ScoredTool struct {
	ToolRecord
	RelevanceScore float64 `json:"relevance_score"`
}

// KnowledgeBase is the persisted JSON document holding all tool records.
type KnowledgeBase struct {
	Tools []ToolRecord `json:"tools"`
}
