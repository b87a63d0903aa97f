package gateway

import "strings"

type UploadResult struct {
	ContractID string `json:"contract_id"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"pages"`
	ChunkCount int    `json:"chunks"`
	Message    string `json:"message,omitempty"`
}

type Answer struct {
	Answer     string `json:"answer"`
	ContractID string `json:"contract_id,omitempty"`
	Question   string `json:"question,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// Clause is one segment of a contract as detected by the backend. Index is stable within a contract.
type Clause struct {
	Index   int    `json:"index"`
	Preview string `json:"preview"`
	Text    string `json:"text"`
}

// Guidance steers a clause suggestion. Every field is optional.
type Guidance struct {
	Playbook             string `json:"playbook"`
	Goal                 string `json:"goal"`
	Tone                 string `json:"tone"`
	CounterpartyPosition string `json:"counterparty_position"`
}

type Suggestion struct {
	AISuggestion    string `json:"ai_suggestion"`
	GuidanceSummary string `json:"guidance_summary"`
}

type ContractInfo struct {
	ContractID string `json:"contract_id"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"pages"`
	ChunkCount int    `json:"chunks"`
	UploadTime string `json:"upload_time"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// suggestRequest is the wire body of a suggestion; blank guidance goes out as null.
type suggestRequest struct {
	Playbook             *string `json:"playbook"`
	NegotiationGoal      *string `json:"negotiation_goal"`
	Tone                 *string `json:"tone"`
	CounterpartyPosition *string `json:"counterparty_position"`
}

func (g Guidance) wire() suggestRequest {
	return suggestRequest{
		Playbook:             optional(g.Playbook),
		NegotiationGoal:      optional(g.Goal),
		Tone:                 optional(g.Tone),
		CounterpartyPosition: optional(g.CounterpartyPosition),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
