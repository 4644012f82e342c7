// Package scoring turns open drift events into repair proposals with a
// confidence scorecard. Confidence starts from embedding similarity, moves
// with type compatibility, and collapses when the drifted field carries
// join references. The resulting band decides auto-apply, human review, or
// auto-reject.
package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
)

// Blocker and issue codes attached to scorecards.
const (
	BlockerJoinReference     = "join_reference"
	BlockerInvalidIdentifier = "invalid_identifier"

	IssueTypeCoercion     = "type_coercion"
	IssueWeakSimilarity   = "weak_similarity"
	IssueRecombinedRename = "recombined_rename"
	IssueDecomposedRename = "decomposed_rename"
	IssueNoCanonicalMatch = "no_canonical_match"
	IssueMechanicalRetire = "mechanical_retire"
)

// Proposal is the repair a scorecard recommends: one registry revision,
// optionally closing a complementary drift event when an add/remove pair
// was recombined into a rename.
type Proposal struct {
	registry.ApplyCommand
	ComplementEventID *uuid.UUID `json:"complement_event_id,omitempty"`
}

// Scorecard is the immutable scoring result for one drift event. Rescoring
// an event supersedes earlier cards instead of rewriting them.
type Scorecard struct {
	ID           uuid.UUID `json:"id"`
	DriftEventID uuid.UUID `json:"drift_event_id"`
	Confidence   float64   `json:"confidence"`
	Blockers     []string  `json:"blockers"`
	Issues       []string  `json:"issues"`
	Joins        []string  `json:"joins"`
	Proposal     Proposal  `json:"proposal"`
	Superseded   bool      `json:"superseded"`
	CreatedAt    time.Time `json:"created_at"`
}

// Band is the disposition a scorecard's confidence falls into.
type Band string

// Scoring bands.
const (
	BandAutoApply Band = "AUTO_APPLY"
	BandReview    Band = "REVIEW"
	BandReject    Band = "REJECT"
)

// Band returns the disposition for the card under the given thresholds.
// Blockers cap the outcome at review regardless of confidence.
func (s *Scorecard) Band(autoApply, review float64) Band {
	if s.Confidence < review {
		return BandReject
	}
	if s.Confidence >= autoApply && len(s.Blockers) == 0 {
		return BandAutoApply
	}
	return BandReview
}
