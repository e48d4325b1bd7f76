package models

import "time"

// KnowledgeType classifies a knowledge item.
type KnowledgeType string

const (
	KnowledgeInsight  KnowledgeType = "Insight"
	KnowledgePattern  KnowledgeType = "Pattern"
	KnowledgeStrategy KnowledgeType = "Strategy"
)

// KnowledgeItem is a fact distilled from a completed analysis.
type KnowledgeItem struct {
	ID               int64         `json:"id,omitempty"`
	SourceAnalysisID int64         `json:"sourceAnalysisId"`
	Type             KnowledgeType `json:"type"`
	Content          string        `json:"content"`
	Symbol           string        `json:"symbol"`
	Timeframe        Timeframe     `json:"timeframe"`
	Timestamp        time.Time     `json:"timestamp"`
}

func (k KnowledgeItem) GetID() int64    { return k.ID }
func (k *KnowledgeItem) SetID(id int64) { k.ID = id }

// TechniqueType says whether a technique is a strategy or an indicator.
type TechniqueType string

const (
	TechniqueStrategy  TechniqueType = "Strategy"
	TechniqueIndicator TechniqueType = "Indicator"
)

// TechniqueSource records where a learned technique came from.
type TechniqueSource string

const (
	SourceUserUpload   TechniqueSource = "user_upload"
	SourceManual       TechniqueSource = "manual"
	SourceWebDiscovery TechniqueSource = "web_discovery"
)

// LearnedTechnique is a user-approved strategy or indicator definition.
type LearnedTechnique struct {
	ID             int64           `json:"id,omitempty"`
	Name           string          `json:"name"`
	Type           TechniqueType   `json:"type"`
	Description    string          `json:"description"`
	Parameters     string          `json:"parameters"`
	Source         TechniqueSource `json:"source"`
	SourceFileName string          `json:"sourceFileName,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (t LearnedTechnique) GetID() int64    { return t.ID }
func (t *LearnedTechnique) SetID(id int64) { t.ID = id }

// TechniqueCandidate is a technique proposed by the engine, before review.
type TechniqueCandidate struct {
	Name        string        `json:"name"`
	Type        TechniqueType `json:"type"`
	Description string        `json:"description"`
	Parameters  string        `json:"parameters"`
}

// Complete reports whether the candidate carries the mandatory fields.
func (c TechniqueCandidate) Complete() bool {
	return c.Name != "" && c.Type != "" && c.Description != ""
}
