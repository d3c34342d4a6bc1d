package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StageTransition is an append-only audit record of a deal's stage, position,
// value and probability at the moment of a mutation. FromStage and
// FromPosition are nil for the record written at creation.
type StageTransition struct {
	ID           int32           `json:"id"`
	DealID       int32           `json:"dealId"`
	WorkspaceID  int32           `json:"workspaceId"`
	FromStage    *Stage          `json:"fromStage"`
	ToStage      Stage           `json:"toStage"`
	FromPosition *int64          `json:"fromPosition"`
	ToPosition   int64           `json:"toPosition"`
	Value        decimal.Decimal `json:"value"`
	Probability  int32           `json:"probability"`
	ActorID      uuid.UUID       `json:"actorId"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewCreationTransition builds the record written when a deal is created
func NewCreationTransition(deal *Deal, actorID uuid.UUID) *StageTransition {
	return &StageTransition{
		WorkspaceID: deal.WorkspaceID,
		ToStage:     deal.Stage,
		ToPosition:  deal.Position,
		Value:       deal.Value,
		Probability: deal.Probability,
		ActorID:     actorID,
	}
}

// NewTransition builds the record for a mutation from before to after
func NewTransition(before, after *Deal, actorID uuid.UUID) *StageTransition {
	fromStage := before.Stage
	fromPosition := before.Position
	return &StageTransition{
		DealID:       after.ID,
		WorkspaceID:  after.WorkspaceID,
		FromStage:    &fromStage,
		ToStage:      after.Stage,
		FromPosition: &fromPosition,
		ToPosition:   after.Position,
		Value:        after.Value,
		Probability:  after.Probability,
		ActorID:      actorID,
	}
}
