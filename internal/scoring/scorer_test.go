package scoring_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/scoring"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// fakeRegistry serves FindCurrent and JoinRefs from memory; the scorer
// touches nothing else.
type fakeRegistry struct {
	entries map[string]registry.Entry
	joins   map[string][]registry.JoinRef
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		entries: make(map[string]registry.Entry),
		joins:   make(map[string][]registry.JoinRef),
	}
}

func (f *fakeRegistry) Handler() *registry.Handler { return nil }

func (f *fakeRegistry) List(context.Context, pagination.PageRequest, registry.Filters) (*pagination.PageResult[registry.Entry], error) {
	return nil, nil
}

func (f *fakeRegistry) Current(context.Context, uuid.UUID, string) ([]registry.Entry, error) {
	return nil, nil
}

func (f *fakeRegistry) FindCurrent(_ context.Context, _ uuid.UUID, _ string, vendorField string) (*registry.Entry, error) {
	e, ok := f.entries[vendorField]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return &e, nil
}

func (f *fakeRegistry) History(context.Context, uuid.UUID, string, string) ([]registry.Entry, error) {
	return nil, nil
}

func (f *fakeRegistry) Validated(context.Context, uuid.UUID, string) ([]registry.Entry, error) {
	return nil, nil
}

func (f *fakeRegistry) Apply(context.Context, registry.ApplyCommand) (*registry.Entry, error) {
	return nil, nil
}

func (f *fakeRegistry) ApplyTx(context.Context, *sql.Tx, registry.ApplyCommand) (*registry.Entry, error) {
	return nil, nil
}

func (f *fakeRegistry) JoinRefs(_ context.Context, _ uuid.UUID, _ string, field string) ([]registry.JoinRef, error) {
	return f.joins[field], nil
}

func (f *fakeRegistry) RegisterJoin(context.Context, registry.JoinRef) (*registry.JoinRef, error) {
	return nil, nil
}

func (f *fakeRegistry) AppendAudit(context.Context, registry.AuditEntry) error { return nil }

func (f *fakeRegistry) AppendAuditTx(context.Context, *sql.Tx, registry.AuditEntry) error {
	return nil
}

func (f *fakeRegistry) ListAudit(context.Context, pagination.PageRequest, uuid.UUID) (*pagination.PageResult[registry.AuditEntry], error) {
	return nil, nil
}

func newScorer(reg registry.System) *scoring.Scorer {
	index := embeddings.NewIndex(embeddings.NewLocalEmbedder())
	detector := drift.NewDetector(0.6, 0.5)
	return scoring.NewScorer(index, reg, detector, 5)
}

func renameEvent(connID uuid.UUID, oldField, newField, observedType string) *drift.Event {
	return &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        oldField,
		Counterpart:  &newField,
		Kind:         drift.KindFieldRenamed,
		ObservedType: observedType,
		Status:       drift.StatusOpen,
	}
}

func TestScoreRenameTypeMatch(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["acct_name"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "acct_name",
		CanonicalField: "account_name",
		Transform:      registry.TransformDirect,
		DeclaredType:   "string",
		Version:        3,
		Current:        true,
	}

	s := newScorer(reg)
	event := renameEvent(connID, "acct_name", "account_name", "string")

	card, err := s.Score(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// Exact canonical name plus matching types pins confidence to the top.
	if card.Confidence < 0.9 {
		t.Errorf("Confidence = %f, want >= 0.9", card.Confidence)
	}
	if len(card.Blockers) != 0 {
		t.Errorf("Blockers = %v, want none", card.Blockers)
	}
	if card.Band(0.90, 0.50) != scoring.BandAutoApply {
		t.Errorf("Band = %s, want %s", card.Band(0.90, 0.50), scoring.BandAutoApply)
	}

	p := card.Proposal
	if p.PrevVendorField != "acct_name" || p.PrevVersion != 3 {
		t.Errorf("proposal prev = %s v%d, want acct_name v3", p.PrevVendorField, p.PrevVersion)
	}
	if p.VendorField != "account_name" || p.CanonicalField != "account_name" {
		t.Errorf("proposal fields = %s -> %s", p.VendorField, p.CanonicalField)
	}
	if p.Transform != registry.TransformRename {
		t.Errorf("Transform = %s, want %s", p.Transform, registry.TransformRename)
	}
	if !p.Validated {
		t.Error("proposal not marked validated")
	}
}

func TestScoreRenameCoercionDecomposesToRetire(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["amount"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "amount",
		CanonicalField: "amount",
		DeclaredType:   "number",
		Version:        1,
		Current:        true,
	}

	s := newScorer(reg)
	event := renameEvent(connID, "amount", "amount_value", "string")

	card, err := s.Score(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// The coercion penalty drags the carry-over below the retire baseline,
	// so the classified rename decomposes: retire the old lineage and let
	// the new field re-enter detection as an addition.
	if !hasIssue(card.Issues, scoring.IssueDecomposedRename) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueDecomposedRename)
	}
	if !hasIssue(card.Issues, scoring.IssueMechanicalRetire) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueMechanicalRetire)
	}
	if card.Proposal.Transform != registry.TransformDrop {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformDrop)
	}
	if card.Confidence != 0.85 {
		t.Errorf("Confidence = %f, want 0.85", card.Confidence)
	}
	if band := card.Band(0.90, 0.50); band != scoring.BandReview {
		t.Errorf("Band = %s, want %s", band, scoring.BandReview)
	}
}

func TestScoreRenameJoinBlocker(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["owner_id"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "owner_id",
		CanonicalField: "owner_id",
		DeclaredType:   "id",
		Version:        2,
		Current:        true,
	}
	reg.joins["owner_id"] = []registry.JoinRef{
		{Entity: "accounts", Field: "owner_id", RefEntity: "users", RefField: "id"},
	}

	s := newScorer(reg)
	event := renameEvent(connID, "owner_id", "owner_ref_id", "id")

	card, err := s.Score(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if !hasIssue(card.Blockers, scoring.BlockerJoinReference) {
		t.Errorf("Blockers = %v, want %s", card.Blockers, scoring.BlockerJoinReference)
	}
	if len(card.Joins) != 1 || card.Joins[0] != "users.id" {
		t.Errorf("Joins = %v, want [users.id]", card.Joins)
	}
	// Blockers cap the outcome at review regardless of confidence.
	if band := card.Band(0.90, 0.50); band == scoring.BandAutoApply {
		t.Errorf("Band = %s, blocked card must not auto-apply", band)
	}
}

func TestScoreRemovalRetires(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["fax"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "fax",
		CanonicalField: "fax",
		DeclaredType:   "string",
		Version:        1,
		Current:        true,
	}

	s := newScorer(reg)
	event := &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "fax",
		Kind:         drift.KindFieldRemoved,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}

	card, err := s.Score(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if card.Proposal.Transform != registry.TransformDrop {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformDrop)
	}
	if !hasIssue(card.Issues, scoring.IssueMechanicalRetire) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueMechanicalRetire)
	}
	// Retirement is destructive, so it lands in review, never auto-apply.
	if band := card.Band(0.90, 0.50); band != scoring.BandReview {
		t.Errorf("Band = %s, want %s", band, scoring.BandReview)
	}
}

func TestScoreRemovalRecombinesWithAddition(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["acct_name"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "acct_name",
		CanonicalField: "account_name",
		DeclaredType:   "string",
		Version:        1,
		Current:        true,
	}

	s := newScorer(reg)
	removal := &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "acct_name",
		Kind:         drift.KindFieldRemoved,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}
	addition := drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "account_name",
		Kind:         drift.KindFieldAdded,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}

	card, err := s.Score(context.Background(), removal, []drift.Event{addition})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if !hasIssue(card.Issues, scoring.IssueRecombinedRename) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueRecombinedRename)
	}
	if card.Proposal.Transform != registry.TransformRename {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformRename)
	}
	if card.Proposal.ComplementEventID == nil || *card.Proposal.ComplementEventID != addition.ID {
		t.Errorf("ComplementEventID = %v, want %s", card.Proposal.ComplementEventID, addition.ID)
	}
	if card.Proposal.VendorField != "account_name" {
		t.Errorf("VendorField = %s, want account_name", card.Proposal.VendorField)
	}
}

func TestScoreAdditionRecombinesWithRemoval(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["acct_name"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "acct_name",
		CanonicalField: "account_name",
		DeclaredType:   "string",
		Version:        1,
		Current:        true,
	}

	s := newScorer(reg)
	addition := &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "account_name",
		Kind:         drift.KindFieldAdded,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}
	removal := drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "acct_name",
		Kind:         drift.KindFieldRemoved,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}

	card, err := s.Score(context.Background(), addition, []drift.Event{removal})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// Seen from the addition side, the pair recombines the same way it does
	// from the removal side: the carry-over outscores a fresh mapping.
	if !hasIssue(card.Issues, scoring.IssueRecombinedRename) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueRecombinedRename)
	}
	if card.Proposal.Transform != registry.TransformRename {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformRename)
	}
	if card.Proposal.ComplementEventID == nil || *card.Proposal.ComplementEventID != removal.ID {
		t.Errorf("ComplementEventID = %v, want %s", card.Proposal.ComplementEventID, removal.ID)
	}
	if card.Proposal.VendorField != "account_name" || card.Proposal.CanonicalField != "account_name" {
		t.Errorf("proposal fields = %s -> %s", card.Proposal.VendorField, card.Proposal.CanonicalField)
	}
}

func TestScoreAdditionDecomposesJoinBlockedRename(t *testing.T) {
	connID := uuid.New()
	reg := newFakeRegistry()
	reg.entries["owner_id"] = registry.Entry{
		ConnectionID:   connID,
		Entity:         "accounts",
		VendorField:    "owner_id",
		CanonicalField: "owner_id",
		DeclaredType:   "id",
		Version:        2,
		Current:        true,
	}
	reg.joins["owner_id"] = []registry.JoinRef{
		{Entity: "accounts", Field: "owner_id", RefEntity: "users", RefField: "id"},
	}

	s := newScorer(reg)
	addition := &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "owner_ref_id",
		Kind:         drift.KindFieldAdded,
		ObservedType: "id",
		Status:       drift.StatusOpen,
	}
	removal := drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "owner_id",
		Kind:         drift.KindFieldRemoved,
		ObservedType: "id",
		Status:       drift.StatusOpen,
	}

	card, err := s.Score(context.Background(), addition, []drift.Event{removal})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// The join penalty on the vanished lineage sinks the carry-over, so the
	// addition is mapped fresh instead and the removal peer stays unconsumed.
	if !hasIssue(card.Issues, scoring.IssueDecomposedRename) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueDecomposedRename)
	}
	if card.Proposal.Transform != registry.TransformDirect {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformDirect)
	}
	if card.Proposal.ComplementEventID != nil {
		t.Errorf("ComplementEventID = %v, want nil", card.Proposal.ComplementEventID)
	}
	if card.Proposal.VendorField != "owner_ref_id" {
		t.Errorf("VendorField = %s, want owner_ref_id", card.Proposal.VendorField)
	}
	if hasIssue(card.Blockers, scoring.BlockerJoinReference) {
		t.Errorf("Blockers = %v, fresh mapping must not inherit the old field's join", card.Blockers)
	}
}

func TestScoreAdditionNoCanonicalMatch(t *testing.T) {
	connID := uuid.New()
	s := newScorer(newFakeRegistry())

	event := &drift.Event{
		ID:           uuid.New(),
		ConnectionID: connID,
		Entity:       "accounts",
		Field:        "loyalty_tier",
		Kind:         drift.KindFieldAdded,
		ObservedType: "string",
		Status:       drift.StatusOpen,
	}

	card, err := s.Score(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if !hasIssue(card.Issues, scoring.IssueNoCanonicalMatch) {
		t.Errorf("Issues = %v, want %s", card.Issues, scoring.IssueNoCanonicalMatch)
	}
	if card.Proposal.CanonicalField != "loyalty_tier" {
		t.Errorf("CanonicalField = %s, want loyalty_tier", card.Proposal.CanonicalField)
	}
	if card.Proposal.Transform != registry.TransformDirect {
		t.Errorf("Transform = %s, want %s", card.Proposal.Transform, registry.TransformDirect)
	}
	// No prior declared type exists for a brand-new field, so nothing can
	// earn it a type bonus on top of the weak-similarity floor.
	if card.Confidence != 0.55 {
		t.Errorf("Confidence = %f, want 0.55", card.Confidence)
	}
	if band := card.Band(0.90, 0.50); band != scoring.BandReview {
		t.Errorf("Band = %s, want %s", band, scoring.BandReview)
	}
}

func TestScorecardBands(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		blockers   []string
		want       scoring.Band
	}{
		{"below review floor", 0.40, nil, scoring.BandReject},
		{"review band", 0.70, nil, scoring.BandReview},
		{"auto-apply", 0.95, nil, scoring.BandAutoApply},
		{"blocked high confidence", 0.95, []string{scoring.BlockerJoinReference}, scoring.BandReview},
		{"exact review floor", 0.50, nil, scoring.BandReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &scoring.Scorecard{Confidence: tt.confidence, Blockers: tt.blockers}
			if got := card.Band(0.90, 0.50); got != tt.want {
				t.Errorf("Band = %s, want %s", got, tt.want)
			}
		})
	}
}

func hasIssue(issues []string, want string) bool {
	for _, i := range issues {
		if i == want {
			return true
		}
	}
	return false
}
