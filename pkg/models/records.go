package models

import (
	"fmt"
	"time"
)

// Timeframe is the chart interval of an analysis.
type Timeframe string

const (
	Timeframe5m      Timeframe = "5m"
	Timeframe15m     Timeframe = "15m"
	Timeframe1h      Timeframe = "1h"
	Timeframe4h      Timeframe = "4h"
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeYearly  Timeframe = "yearly"
)

// Timeframes lists every supported timeframe, shortest first.
var Timeframes = []Timeframe{
	Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h,
	TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeYearly,
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range Timeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// RiskProfile is the investor's risk appetite.
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskBalanced     RiskProfile = "balanced"
	RiskAggressive   RiskProfile = "aggressive"
)

// RiskProfiles lists the supported risk profiles.
var RiskProfiles = []RiskProfile{RiskConservative, RiskBalanced, RiskAggressive}

// ParseRiskProfile validates a risk profile string.
func ParseRiskProfile(s string) (RiskProfile, error) {
	for _, rp := range RiskProfiles {
		if string(rp) == s {
			return rp, nil
		}
	}
	return "", fmt.Errorf("unknown risk profile %q", s)
}

// Label returns the capitalised display name ("Conservative").
func (r RiskProfile) Label() string {
	switch r {
	case RiskConservative:
		return "Conservative"
	case RiskAggressive:
		return "Aggressive"
	default:
		return "Balanced"
	}
}

// ── Records ──

// WebSource is the web part of a grounding citation.
type WebSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// GroundingSource is a citation returned with a web-search response.
type GroundingSource struct {
	Web *WebSource `json:"web,omitempty"`
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatUser  ChatRole = "user"
	ChatModel ChatRole = "model"
)

// ChatPart is one text part of a chat message.
type ChatPart struct {
	Text string `json:"text"`
}

// ChatMessage is one turn of a follow-up conversation.
type ChatMessage struct {
	Role      ChatRole   `json:"role"`
	Parts     []ChatPart `json:"parts"`
	Timestamp time.Time  `json:"timestamp"`
}

// Text joins the message parts.
func (m ChatMessage) Text() string {
	var s string
	for _, p := range m.Parts {
		s += p.Text
	}
	return s
}

// NewChatMessage builds a single-part message stamped now.
func NewChatMessage(role ChatRole, text string) ChatMessage {
	return ChatMessage{Role: role, Parts: []ChatPart{{Text: text}}, Timestamp: time.Now()}
}

// AnalysisRecord is one completed analysis in the history log.
type AnalysisRecord struct {
	ID          int64             `json:"id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Symbol      string            `json:"symbol"`
	Timeframe   Timeframe         `json:"timeframe"`
	Timezone    string            `json:"timezone"`
	RiskProfile RiskProfile       `json:"riskProfile,omitempty"`
	FilesUsed   []Artifact        `json:"filesUsed"`
	Analysis    AnalysisResult    `json:"analysis"`
	Sources     []GroundingSource `json:"sources"`
	Prompt      string            `json:"prompt"`
	ChatHistory []ChatMessage     `json:"chatHistory,omitempty"`
}

func (r AnalysisRecord) GetID() int64    { return r.ID }
func (r *AnalysisRecord) SetID(id int64) { r.ID = id }

// RecordKind tells which collection an analysis record lives in.
type RecordKind string

const (
	RecordHistory RecordKind = "history"
	RecordSaved   RecordKind = "saved"
)

// SavedAnalysisRecord is a user-named copy of a history record.
type SavedAnalysisRecord struct {
	AnalysisRecord
	Name            string `json:"name"`
	SourceHistoryID int64  `json:"sourceHistoryId,omitempty"`
}

// WatchlistItem is a symbol the user follows.
type WatchlistItem struct {
	ID      int64     `json:"id,omitempty"`
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"addedAt"`
}

func (w WatchlistItem) GetID() int64    { return w.ID }
func (w *WatchlistItem) SetID(id int64) { w.ID = id }

// Preferences are the per-installation user settings. The JSON names match
// the preferences block of a backup document.
type Preferences struct {
	TourCompleted      bool        `json:"tourCompleted"`
	Provider           string      `json:"provider,omitempty"`
	DefaultTimeframe   Timeframe   `json:"timeframe,omitempty"`
	DefaultRiskProfile RiskProfile `json:"riskProfile,omitempty"`
	Timezone           string      `json:"timezone,omitempty"`
	Strategies         []string    `json:"selectedStrategies,omitempty"`
	Indicators         []string    `json:"selectedIndicators,omitempty"`
}
