package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

type repo struct {
	db     *sql.DB
	scorer *Scorer
	logger *slog.Logger
}

// New creates a scoring repository implementing the System interface.
func New(db *sql.DB, scorer *Scorer, logger *slog.Logger) System {
	return &repo{
		db:     db,
		scorer: scorer,
		logger: logger.With("system", "scoring"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Score(
	ctx context.Context,
	event *drift.Event,
	openPeers []drift.Event,
) (*Scorecard, error) {
	card, err := r.scorer.Score(ctx, event, openPeers)
	if err != nil {
		return nil, err
	}

	persisted, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Scorecard, error) {
		// Cards are immutable; a rescore supersedes instead of rewriting.
		if _, err := tx.ExecContext(ctx, `
			UPDATE scorecards SET superseded = true
			WHERE drift_event_id = $1 AND NOT superseded`,
			card.DriftEventID,
		); err != nil {
			return nil, fmt.Errorf("supersede scorecards: %w", err)
		}

		return r.insert(ctx, tx, card)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("drift event scored",
		"drift_event_id", persisted.DriftEventID,
		"confidence", persisted.Confidence,
		"blockers", len(persisted.Blockers),
	)
	return persisted, nil
}

func (r *repo) insert(ctx context.Context, tx *sql.Tx, card *Scorecard) (*Scorecard, error) {
	blockers, err := json.Marshal(card.Blockers)
	if err != nil {
		return nil, fmt.Errorf("encode blockers: %w", err)
	}
	issues, err := json.Marshal(card.Issues)
	if err != nil {
		return nil, fmt.Errorf("encode issues: %w", err)
	}
	joins, err := json.Marshal(card.Joins)
	if err != nil {
		return nil, fmt.Errorf("encode joins: %w", err)
	}
	proposal, err := json.Marshal(card.Proposal)
	if err != nil {
		return nil, fmt.Errorf("encode proposal: %w", err)
	}

	c, err := repository.QueryOne(ctx, tx, `
		INSERT INTO scorecards(id, drift_event_id, confidence, blockers, issues, joins, proposal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, drift_event_id, confidence, blockers, issues, joins, proposal, superseded, created_at`,
		[]any{card.ID, card.DriftEventID, card.Confidence, blockers, issues, joins, proposal},
		scanScorecard,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) FindByEvent(ctx context.Context, eventID uuid.UUID) (*Scorecard, error) {
	c, err := repository.QueryOne(ctx, r.db, `
		SELECT id, drift_event_id, confidence, blockers, issues, joins, proposal, superseded, created_at
		FROM scorecards
		WHERE drift_event_id = $1 AND NOT superseded`,
		[]any{eventID},
		scanScorecard,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func scanScorecard(s repository.Scanner) (Scorecard, error) {
	var (
		c        Scorecard
		blockers []byte
		issues   []byte
		joins    []byte
		proposal []byte
	)

	err := s.Scan(
		&c.ID,
		&c.DriftEventID,
		&c.Confidence,
		&blockers,
		&issues,
		&joins,
		&proposal,
		&c.Superseded,
		&c.CreatedAt,
	)
	if err != nil {
		return c, err
	}

	if err := json.Unmarshal(blockers, &c.Blockers); err != nil {
		return c, err
	}
	if err := json.Unmarshal(issues, &c.Issues); err != nil {
		return c, err
	}
	if err := json.Unmarshal(joins, &c.Joins); err != nil {
		return c, err
	}
	if err := json.Unmarshal(proposal, &c.Proposal); err != nil {
		return c, err
	}

	return c, nil
}
