package models

import (
	"strings"
	"time"
)

// Kind names one category of task the gateway can dispatch.
type Kind string

const (
	KindChat          Kind = "chat"
	KindClassify      Kind = "classify"
	KindGenerateCode  Kind = "generate-code"
	KindFixBug        Kind = "fix-bug"
	KindGenerateTests Kind = "generate-tests"
)

// Kinds lists every supported task kind in display order.
var Kinds = []Kind{KindChat, KindClassify, KindGenerateCode, KindFixBug, KindGenerateTests}

// ParseKind resolves a user supplied kind name.
func ParseKind(s string) (Kind, bool) {
	needle := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Kinds {
		if k == needle {
			return k, true
		}
	}
	return "", false
}

// Provenance tells whether an artifact came from the live provider or a local simulation.
type Provenance string

const (
	ProvenanceLive      Provenance = "live"
	ProvenanceSimulated Provenance = "simulated"
)

// Payload carries the kind-specific inputs of a task. Only the fields
// relevant to the request kind are populated.
type Payload struct {
	Message  string            `json:"message,omitempty"`
	Prompt   string            `json:"prompt,omitempty"`
	Code     string            `json:"code,omitempty"`
	Language string            `json:"language,omitempty"`
	Document *UploadedDocument `json:"document,omitempty"`
}

type TaskRequest struct {
	Kind          Kind    `json:"kind"`
	Payload       Payload `json:"payload"`
	CorrelationID string  `json:"correlation_id"`
}

// Artifact is the product of a task: plain text for most kinds, an analysis for classify.
type Artifact struct {
	Text     string            `json:"text,omitempty"`
	Analysis *DocumentAnalysis `json:"analysis,omitempty"`
}

// Empty reports whether the artifact carries no usable content.
func (a Artifact) Empty() bool {
	if a.Analysis != nil {
		return strings.TrimSpace(a.Analysis.Summary) == "" && len(a.Analysis.KeyPoints) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}

type TaskResponse struct {
	Success       bool       `json:"success"`
	Artifact      Artifact   `json:"artifact"`
	Provenance    Provenance `json:"provenance"`
	Timestamp     time.Time  `json:"timestamp"`
	CorrelationID string     `json:"correlation_id,omitempty"`
}
