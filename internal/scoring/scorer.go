package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
)

// Adjustments applied on top of the base similarity score.
const (
	typeMatchBonus  = 0.10
	coercionPenalty = 0.15
	joinPenalty     = 0.40

	// Base confidence for retiring a vanished field. Retirement is
	// mechanical but destructive, so it lands in the review band unless
	// joins drag it lower.
	retireBase = 0.85

	weakSimilarity = 0.55
)

// Scorer computes scorecards for open drift events. The detector supplies
// the rename-pairing thresholds used when recombining add/remove peers.
type Scorer struct {
	index    *embeddings.Index
	registry registry.System
	detector *drift.Detector
	topK     int
}

// NewScorer creates a scorer over the given similarity index and registry.
func NewScorer(index *embeddings.Index, reg registry.System, detector *drift.Detector, topK int) *Scorer {
	if topK < 1 {
		topK = 5
	}
	return &Scorer{index: index, registry: reg, detector: detector, topK: topK}
}

// Score computes a scorecard and repair proposal for the event. openPeers
// holds the connection's other in-flight events so an add/remove pair that
// is really a rename can be recombined into a single rename repair.
func (s *Scorer) Score(
	ctx context.Context,
	event *drift.Event,
	openPeers []drift.Event,
) (*Scorecard, error) {
	card := &Scorecard{
		ID:           uuid.New(),
		DriftEventID: event.ID,
		Blockers:     []string{},
		Issues:       []string{},
		Joins:        []string{},
	}

	var err error
	switch event.Kind {
	case drift.KindFieldRenamed:
		err = s.scoreClassifiedRename(ctx, event, card)
	case drift.KindFieldRemoved:
		err = s.scoreRemoval(ctx, event, openPeers, card)
	case drift.KindFieldAdded:
		err = s.scoreAddition(ctx, event, openPeers, card)
	default:
		err = fmt.Errorf("unknown drift kind %q", event.Kind)
	}
	if err != nil {
		return nil, err
	}

	if !registry.ValidIdentifier(card.Proposal.VendorField) ||
		!registry.ValidIdentifier(card.Proposal.CanonicalField) {
		card.Blockers = append(card.Blockers, BlockerInvalidIdentifier)
	}

	card.Confidence = clamp(card.Confidence)
	return card, nil
}

// shell returns an empty scorecard sharing the event identity of card.
// Competing repair plans are scored into shells before one is committed.
func shell(card *Scorecard) *Scorecard {
	return &Scorecard{
		ID:           card.ID,
		DriftEventID: card.DriftEventID,
		Blockers:     []string{},
		Issues:       []string{},
		Joins:        []string{},
	}
}

// scoreClassifiedRename scores a detector-classified rename, but the
// classification only stands if it outscores the decomposition: when
// retiring the vanished field is the more confident plan, the retire wins
// and the new field re-enters detection as an independent addition.
func (s *Scorer) scoreClassifiedRename(
	ctx context.Context,
	event *drift.Event,
	card *Scorecard,
) error {
	rename := shell(card)
	if err := s.scoreRename(ctx, event, event.Field, *counterpartOf(event), rename, nil); err != nil {
		return err
	}

	retire := shell(card)
	if err := s.scoreRetire(ctx, event, retire); err != nil {
		return err
	}

	if retire.Confidence > rename.Confidence {
		*card = *retire
		card.Issues = append(card.Issues, IssueDecomposedRename)
		return nil
	}

	*card = *rename
	return nil
}

// scoreRename proposes carrying the old canonical mapping over to the new
// vendor field name.
func (s *Scorer) scoreRename(
	ctx context.Context,
	event *drift.Event,
	oldField, newField string,
	card *Scorecard,
	complement *uuid.UUID,
) error {
	prev, err := s.registry.FindCurrent(ctx, event.ConnectionID, event.Entity, oldField)
	if err != nil {
		return fmt.Errorf("find drifted mapping %s: %w", oldField, err)
	}

	base, err := s.similarity(ctx, newField, prev.CanonicalField)
	if err != nil {
		return err
	}
	card.Confidence = base
	if base < weakSimilarity {
		card.Issues = append(card.Issues, IssueWeakSimilarity)
	}

	transform := registry.TransformRename
	observed := vendors.FieldType(event.ObservedType)
	declared := vendors.FieldType(prev.DeclaredType)

	if observed == declared {
		card.Confidence += typeMatchBonus
	} else {
		card.Confidence -= coercionPenalty
		card.Issues = append(card.Issues, IssueTypeCoercion)
		transform = castTransform(declared)
	}

	if err := s.applyJoinPenalty(ctx, event, oldField, card); err != nil {
		return err
	}

	card.Proposal = Proposal{
		ApplyCommand: registry.ApplyCommand{
			ConnectionID:    event.ConnectionID,
			Entity:          event.Entity,
			PrevVendorField: prev.VendorField,
			PrevVersion:     prev.Version,
			VendorField:     newField,
			CanonicalField:  prev.CanonicalField,
			Transform:       transform,
			DeclaredType:    prev.DeclaredType,
			Validated:       true,
		},
		ComplementEventID: complement,
	}
	return nil
}

// scoreRemoval proposes retiring the lineage, unless an open addition pairs
// with the vanished field and carrying the mapping over to it outscores the
// retire, in which case the pair recombines into a rename.
func (s *Scorer) scoreRemoval(
	ctx context.Context,
	event *drift.Event,
	openPeers []drift.Event,
	card *Scorecard,
) error {
	peer := s.findComplement(event, openPeers, drift.KindFieldAdded)
	if peer == nil {
		return s.scoreRetire(ctx, event, card)
	}

	rename := shell(card)
	rename.Issues = append(rename.Issues, IssueRecombinedRename)
	if err := s.scoreRename(ctx, event, event.Field, peer.Field, rename, &peer.ID); err != nil {
		return err
	}

	retire := shell(card)
	if err := s.scoreRetire(ctx, event, retire); err != nil {
		return err
	}

	// Confidence breaks the tie; when the retire wins, the addition peer
	// stays unconsumed and is scored on its own.
	if retire.Confidence > rename.Confidence {
		*card = *retire
		card.Issues = append(card.Issues, IssueDecomposedRename)
		return nil
	}

	*card = *rename
	return nil
}

// scoreRetire proposes retiring the vanished field's lineage.
func (s *Scorer) scoreRetire(
	ctx context.Context,
	event *drift.Event,
	card *Scorecard,
) error {
	prev, err := s.registry.FindCurrent(ctx, event.ConnectionID, event.Entity, event.Field)
	if err != nil {
		return fmt.Errorf("find drifted mapping %s: %w", event.Field, err)
	}

	card.Confidence = retireBase
	card.Issues = append(card.Issues, IssueMechanicalRetire)

	if err := s.applyJoinPenalty(ctx, event, event.Field, card); err != nil {
		return err
	}

	card.Proposal = Proposal{
		ApplyCommand: registry.ApplyCommand{
			ConnectionID:    event.ConnectionID,
			Entity:          event.Entity,
			PrevVendorField: prev.VendorField,
			PrevVersion:     prev.Version,
			VendorField:     prev.VendorField,
			CanonicalField:  prev.CanonicalField,
			Transform:       registry.TransformDrop,
			DeclaredType:    prev.DeclaredType,
			Validated:       true,
		},
	}
	return nil
}

// scoreAddition recombines the new field with an open removal peer when
// the rename outscores treating them independently; otherwise the field is
// scored as a fresh addition.
func (s *Scorer) scoreAddition(
	ctx context.Context,
	event *drift.Event,
	openPeers []drift.Event,
	card *Scorecard,
) error {
	peer := s.findComplement(event, openPeers, drift.KindFieldRemoved)
	if peer == nil {
		return s.scoreFresh(ctx, event, card)
	}

	rename := shell(card)
	rename.Issues = append(rename.Issues, IssueRecombinedRename)
	if err := s.scoreRename(ctx, event, peer.Field, event.Field, rename, &peer.ID); err != nil {
		return err
	}

	fresh := shell(card)
	if err := s.scoreFresh(ctx, event, fresh); err != nil {
		return err
	}

	if fresh.Confidence > rename.Confidence {
		*card = *fresh
		card.Issues = append(card.Issues, IssueDecomposedRename)
		return nil
	}

	*card = *rename
	return nil
}

// scoreFresh proposes mapping the new field onto its closest indexed
// canonical field, or onto itself when nothing in the index comes close.
// An addition has no prior declared type, so no type bonus applies.
func (s *Scorer) scoreFresh(
	ctx context.Context,
	event *drift.Event,
	card *Scorecard,
) error {
	matches, err := s.index.Query(ctx, event.Field, s.topK)
	if err != nil {
		return fmt.Errorf("query similarity index: %w", err)
	}

	canonical := event.Field
	if len(matches) > 0 && matches[0].Similarity >= weakSimilarity {
		canonical = matches[0].CanonicalField
		card.Confidence = matches[0].Similarity
	} else {
		// A genuinely new field maps onto a fresh canonical name with
		// moderate confidence; someone should look at it.
		card.Confidence = weakSimilarity
		card.Issues = append(card.Issues, IssueNoCanonicalMatch)
	}

	if err := s.applyJoinPenalty(ctx, event, event.Field, card); err != nil {
		return err
	}

	card.Proposal = Proposal{
		ApplyCommand: registry.ApplyCommand{
			ConnectionID:   event.ConnectionID,
			Entity:         event.Entity,
			VendorField:    event.Field,
			CanonicalField: canonical,
			Transform:      registry.TransformDirect,
			DeclaredType:   event.ObservedType,
			Validated:      true,
		},
	}
	return nil
}

func (s *Scorer) applyJoinPenalty(
	ctx context.Context,
	event *drift.Event,
	field string,
	card *Scorecard,
) error {
	joins, err := s.registry.JoinRefs(ctx, event.ConnectionID, event.Entity, field)
	if err != nil {
		return fmt.Errorf("load join refs %s: %w", field, err)
	}
	if len(joins) == 0 {
		return nil
	}

	card.Confidence -= joinPenalty
	card.Blockers = append(card.Blockers, BlockerJoinReference)
	for _, j := range joins {
		card.Joins = append(card.Joins, fmt.Sprintf("%s.%s", j.RefEntity, j.RefField))
	}
	return nil
}

// similarity prefers the embedding index; when the canonical field has not
// been indexed yet, it falls back to embedding both names directly.
func (s *Scorer) similarity(ctx context.Context, name, canonical string) (float64, error) {
	matches, err := s.index.Query(ctx, name, s.topK)
	if err != nil {
		return 0, err
	}

	for _, m := range matches {
		if m.CanonicalField == canonical {
			return m.Similarity, nil
		}
	}

	if err := s.index.Store(ctx, canonical); err != nil {
		return 0, err
	}

	matches, err = s.index.Query(ctx, name, s.topK)
	if err != nil {
		return 0, err
	}
	for _, m := range matches {
		if m.CanonicalField == canonical {
			return m.Similarity, nil
		}
	}

	return 0, errors.New("canonical field missing from index after store")
}

// findComplement locates an open peer event of the wanted kind whose field
// plausibly pairs with the event's field as a rename.
func (s *Scorer) findComplement(event *drift.Event, openPeers []drift.Event, wanted drift.Kind) *drift.Event {
	for i := range openPeers {
		peer := &openPeers[i]
		if peer.ID == event.ID || peer.Kind != wanted || peer.Entity != event.Entity {
			continue
		}
		if peer.Status != drift.StatusOpen {
			continue
		}
		if s.detector.RenameCandidate(event.Field, peer.Field,
			vendors.FieldType(event.ObservedType), vendors.FieldType(peer.ObservedType)) {
			return peer
		}
	}
	return nil
}

func counterpartOf(event *drift.Event) *string {
	if event.Counterpart != nil {
		return event.Counterpart
	}
	return &event.Field
}

func castTransform(declared vendors.FieldType) registry.TransformKind {
	switch declared {
	case vendors.TypeNumber:
		return registry.TransformCastNumber
	case vendors.TypeBool:
		return registry.TransformCastBool
	case vendors.TypeTime:
		return registry.TransformCastTime
	default:
		return registry.TransformCastString
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
