package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage is a pipeline stage
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// Stages lists pipeline stages in board order
var Stages = []Stage{
	StageLead,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageWon,
	StageLost,
}

// IsValid reports whether s is a known stage
func (s Stage) IsValid() bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// DropEdge says which side of a target card a dragged deal was dropped on
type DropEdge string

const (
	EdgeBefore DropEdge = "before"
	EdgeAfter  DropEdge = "after"
)

// IsValid reports whether e is a known edge
func (e DropEdge) IsValid() bool {
	return e == EdgeBefore || e == EdgeAfter
}

// Deal is a sales opportunity. Position orders deals within a stage; it is
// only meaningful relative to other deals in the same stage.
type Deal struct {
	ID          int32           `json:"id"`
	WorkspaceID int32           `json:"workspaceId"`
	Name        string          `json:"name"`
	Value       decimal.Decimal `json:"value"`
	Stage       Stage           `json:"stage"`
	Position    int64           `json:"position"`
	Probability int32           `json:"probability"`
	CloseDate   *time.Time      `json:"closeDate,omitempty"`
	OwnerID     *uuid.UUID      `json:"ownerId,omitempty"`
	CompanyID   *int32          `json:"companyId,omitempty"`
	ContactID   *int32          `json:"contactId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// StageColumn is one column of the pipeline board
type StageColumn struct {
	Stage      Stage           `json:"stage"`
	Deals      []*Deal         `json:"deals"`
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

// DealRepository defines the interface for deal persistence operations
type DealRepository interface {
	// CreateWithTransition inserts the deal and its initial transition in one
	// database transaction; transition.DealID is filled in by the repository
	CreateWithTransition(deal *Deal, transition *StageTransition) (*Deal, error)
	GetByID(workspaceID int32, id int32) (*Deal, error)
	// ListByStage returns deals ordered by position, then id
	ListByStage(workspaceID int32, stage Stage) ([]*Deal, error)
	ListByWorkspace(workspaceID int32) ([]*Deal, error)
	// UpdateWithTransition saves all mutable fields of deal and, when transition
	// is non-nil, appends it in the same database transaction
	UpdateWithTransition(deal *Deal, transition *StageTransition) (*Deal, error)
	Delete(workspaceID int32, id int32) error
	ListTransitions(workspaceID int32, dealID int32) ([]*StageTransition, error)
}
