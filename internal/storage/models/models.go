package models

import (
	"strings"
	"time"
)

// MatchType records which retrieval path surfaced a candidate.
type MatchType string

const (
	MatchKeyword   MatchType = "keyword"
	MatchEmbedding MatchType = "embedding"
)

// ReviewRecord is a supervisor's graded assessment of one agent interaction.
// Score is nil while the review is ungraded. Embedding is either empty or
// exactly provider-dimension wide; EmbeddingStale is raised whenever a
// content-bearing field changes after the last successful embedding run.
type ReviewRecord struct {
	ID               string
	AgentID          string
	ShortDescription string
	Notes            string
	Feedback         string
	Score            *int
	Categories       []string
	GradedAt         time.Time
	Embedding        []float32
	EmbeddingStale   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Graded reports whether a quality score has been assigned.
func (r *ReviewRecord) Graded() bool {
	return r.Score != nil
}

func (r *ReviewRecord) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// SharesCategory reports whether two reviews carry at least one common label.
func (r *ReviewRecord) SharesCategory(other *ReviewRecord) bool {
	for _, c := range other.Categories {
		if r.HasCategory(c) {
			return true
		}
	}
	return false
}

// AgentIssueEntry is a derived record produced by the issue-analysis job for
// each unresolved low-scoring review. The full per-agent set is replaced on
// every run, never merged.
type AgentIssueEntry struct {
	ID        string
	AgentID   string
	ReviewID  string
	Summary   string
	Resolved  bool
	CreatedAt time.Time
}

// Agent is the subject-directory record used to enrich output.
type Agent struct {
	ID          string
	DisplayName string
	Team        string
	Active      bool
}

// CandidateResult is an ephemeral retrieval hit; it lives only within one
// similarity-search call.
type CandidateResult struct {
	DocumentID string
	Score      int
	MatchType  MatchType
}

// RecordContent is the closed set of content shapes that feed the search
// index and the embedding input. Adding a record kind means adding a variant
// here and a case to ContentText; there is no reflective fallback.
type RecordContent interface {
	isRecordContent()
}

// ReviewContent carries the free-text fields of a review.
type ReviewContent struct {
	ShortDescription string
	Notes            string
	Feedback         string
}

// IssueContent carries the generated summary of an unresolved issue.
type IssueContent struct {
	Summary string
}

func (ReviewContent) isRecordContent() {}
func (IssueContent) isRecordContent()  {}

// ContentText flattens record content into one indexable string. This is the
// single text-extraction boundary for all record kinds.
func ContentText(c RecordContent) string {
	switch v := c.(type) {
	case ReviewContent:
		return joinNonEmpty(v.ShortDescription, v.Notes, v.Feedback)
	case IssueContent:
		return v.Summary
	default:
		return ""
	}
}

// Content returns the review's full indexable content.
func (r *ReviewRecord) Content() RecordContent {
	return ReviewContent{
		ShortDescription: r.ShortDescription,
		Notes:            r.Notes,
		Feedback:         r.Feedback,
	}
}

// EmbeddingInput is the text a review's vector is computed over: notes plus
// feedback when present. The short description is indexed for keyword search
// but kept out of the vector.
func (r *ReviewRecord) EmbeddingInput() string {
	return joinNonEmpty(r.Notes, r.Feedback)
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
