package service

import (
	"errors"
	"sort"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/pipeline"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultProbability is the win probability a deal gets when created in, or
// moved into, a stage without an explicit probability
var DefaultProbability = map[domain.Stage]int32{
	domain.StageLead:        10,
	domain.StageQualified:   25,
	domain.StageProposal:    50,
	domain.StageNegotiation: 75,
	domain.StageWon:         100,
	domain.StageLost:        0,
}

// CreateDealInput is the validated input of CreateDeal
type CreateDealInput struct {
	Name        string
	Value       decimal.Decimal
	Stage       domain.Stage
	Probability *int32
	CloseDate   *time.Time
	OwnerID     *uuid.UUID
	CompanyID   *int32
	ContactID   *int32
}

// UpdateDealInput carries the fields to change; nil leaves a field unchanged.
// ClearCloseDate removes the close date and wins over CloseDate.
type UpdateDealInput struct {
	Name           *string
	Value          *decimal.Decimal
	Probability    *int32
	CloseDate      *time.Time
	ClearCloseDate bool
	OwnerID        *uuid.UUID
	CompanyID      *int32
	ContactID      *int32
}

// MoveDealInput places a deal in Stage. Without TargetID the deal is appended
// to the end of the stage; otherwise it lands on Edge of the target deal.
type MoveDealInput struct {
	Stage    domain.Stage
	TargetID *int32
	Edge     domain.DropEdge
}

// DealMovedPayload is the websocket payload of deal.moved
type DealMovedPayload struct {
	ID        int32        `json:"id"`
	FromStage domain.Stage `json:"fromStage"`
	Stage     domain.Stage `json:"stage"`
	Position  int64        `json:"position"`
}

// DealDeletedPayload is the websocket payload of deal.deleted
type DealDeletedPayload struct {
	ID int32 `json:"id"`
}

// DealService manages deals and their place in the pipeline
type DealService struct {
	dealRepo       domain.DealRepository
	membershipRepo domain.MembershipRepository
	eventPublisher websocket.EventPublisher
}

// NewDealService creates a new DealService
func NewDealService(dealRepo domain.DealRepository, membershipRepo domain.MembershipRepository) *DealService {
	return &DealService{
		dealRepo:       dealRepo,
		membershipRepo: membershipRepo,
		eventPublisher: websocket.NoOpPublisher{},
	}
}

// SetEventPublisher attaches the realtime hub. nil detaches it.
func (s *DealService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisherOrNoOp(publisher)
}

func (s *DealService) publishEvent(workspaceID int32, event websocket.Event) {
	s.eventPublisher.Publish(workspaceID, event)
}

// CreateDeal appends a new deal to the end of its stage and records the
// initial transition atomically with it
func (s *DealService) CreateDeal(actor *domain.ActorContext, input CreateDealInput) (*domain.Deal, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}

	stage := input.Stage
	if stage == "" {
		stage = domain.StageLead
	}
	if !stage.IsValid() {
		return nil, domain.ErrInvalidStage
	}
	if input.Value.IsNegative() {
		return nil, domain.ErrInvalidValue
	}

	probability := DefaultProbability[stage]
	if input.Probability != nil {
		probability = *input.Probability
	}
	if err := validateProbability(probability); err != nil {
		return nil, err
	}
	if err := s.validateOwner(actor.WorkspaceID, input.OwnerID); err != nil {
		return nil, err
	}

	stageDeals, err := s.dealRepo.ListByStage(actor.WorkspaceID, stage)
	if err != nil {
		return nil, err
	}

	deal := &domain.Deal{
		WorkspaceID: actor.WorkspaceID,
		Name:        name,
		Value:       input.Value,
		Stage:       stage,
		Position:    pipeline.AppendPosition(stageDeals),
		Probability: probability,
		CloseDate:   input.CloseDate,
		OwnerID:     input.OwnerID,
		CompanyID:   input.CompanyID,
		ContactID:   input.ContactID,
	}

	created, err := s.dealRepo.CreateWithTransition(deal, domain.NewCreationTransition(deal, actor.UserID))
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Int32("deal_id", created.ID).
		Str("stage", string(created.Stage)).
		Int64("position", created.Position).
		Msg("Deal created")

	s.publishEvent(actor.WorkspaceID, websocket.DealCreated(created))
	return created, nil
}

// GetDeal retrieves a deal of the actor's workspace
func (s *DealService) GetDeal(actor *domain.ActorContext, id int32) (*domain.Deal, error) {
	return s.dealRepo.GetByID(actor.WorkspaceID, id)
}

// MoveDeal changes a deal's stage and position in one mutation and records the
// transition. Position is computed from the target stage as read now; there is
// no re-validation against concurrent moves. On error nothing is written and
// the caller should refetch the board.
func (s *DealService) MoveDeal(actor *domain.ActorContext, id int32, input MoveDealInput) (*domain.Deal, error) {
	if !input.Stage.IsValid() {
		return nil, domain.ErrInvalidStage
	}

	deal, err := s.dealRepo.GetByID(actor.WorkspaceID, id)
	if err != nil {
		return nil, err
	}

	stageDeals, err := s.dealRepo.ListByStage(actor.WorkspaceID, input.Stage)
	if err != nil {
		return nil, err
	}
	stageDeals = excludeDeal(stageDeals, deal.ID)

	var position int64
	if input.TargetID == nil {
		position = pipeline.AppendPosition(stageDeals)
	} else {
		position, err = pipeline.InsertPosition(stageDeals, *input.TargetID, input.Edge)
		if err != nil {
			return nil, err
		}
	}

	before := *deal
	deal.Stage = input.Stage
	deal.Position = position
	if before.Stage != deal.Stage && (deal.Stage == domain.StageWon || deal.Stage == domain.StageLost) {
		deal.Probability = DefaultProbability[deal.Stage]
	}

	updated, err := s.dealRepo.UpdateWithTransition(deal, domain.NewTransition(&before, deal, actor.UserID))
	if err != nil {
		log.Error().Err(err).
			Int32("workspace_id", actor.WorkspaceID).
			Int32("deal_id", id).
			Msg("Failed to move deal")
		return nil, err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Int32("deal_id", id).
		Str("from_stage", string(before.Stage)).
		Str("to_stage", string(updated.Stage)).
		Int64("position", updated.Position).
		Msg("Deal moved")

	s.publishEvent(actor.WorkspaceID, websocket.DealMoved(DealMovedPayload{
		ID:        updated.ID,
		FromStage: before.Stage,
		Stage:     updated.Stage,
		Position:  updated.Position,
	}))
	return updated, nil
}

// UpdateDeal changes deal fields. A transition is recorded when value or
// probability changes.
func (s *DealService) UpdateDeal(actor *domain.ActorContext, id int32, input UpdateDealInput) (*domain.Deal, error) {
	deal, err := s.dealRepo.GetByID(actor.WorkspaceID, id)
	if err != nil {
		return nil, err
	}
	before := *deal

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		deal.Name = name
	}
	if input.Value != nil {
		if input.Value.IsNegative() {
			return nil, domain.ErrInvalidValue
		}
		deal.Value = *input.Value
	}
	if input.Probability != nil {
		if err := validateProbability(*input.Probability); err != nil {
			return nil, err
		}
		deal.Probability = *input.Probability
	}
	switch {
	case input.ClearCloseDate:
		deal.CloseDate = nil
	case input.CloseDate != nil:
		deal.CloseDate = input.CloseDate
	}
	if input.OwnerID != nil {
		if err := s.validateOwner(actor.WorkspaceID, input.OwnerID); err != nil {
			return nil, err
		}
		deal.OwnerID = input.OwnerID
	}
	if input.CompanyID != nil {
		deal.CompanyID = input.CompanyID
	}
	if input.ContactID != nil {
		deal.ContactID = input.ContactID
	}

	var transition *domain.StageTransition
	if !before.Value.Equal(deal.Value) || before.Probability != deal.Probability {
		transition = domain.NewTransition(&before, deal, actor.UserID)
	}

	updated, err := s.dealRepo.UpdateWithTransition(deal, transition)
	if err != nil {
		return nil, err
	}

	s.publishEvent(actor.WorkspaceID, websocket.DealUpdated(updated))
	return updated, nil
}

// DeleteDeal removes a deal and its audit trail
func (s *DealService) DeleteDeal(actor *domain.ActorContext, id int32) error {
	if err := s.dealRepo.Delete(actor.WorkspaceID, id); err != nil {
		return err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Int32("deal_id", id).
		Msg("Deal deleted")

	s.publishEvent(actor.WorkspaceID, websocket.DealDeleted(DealDeletedPayload{ID: id}))
	return nil
}

// ListTransitions returns a deal's audit trail, oldest first
func (s *DealService) ListTransitions(actor *domain.ActorContext, id int32) ([]*domain.StageTransition, error) {
	if _, err := s.dealRepo.GetByID(actor.WorkspaceID, id); err != nil {
		return nil, err
	}
	return s.dealRepo.ListTransitions(actor.WorkspaceID, id)
}

// GetBoard returns every stage in board order with its deals sorted by
// position, then id
func (s *DealService) GetBoard(actor *domain.ActorContext) ([]*domain.StageColumn, error) {
	deals, err := s.dealRepo.ListByWorkspace(actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	columns := make([]*domain.StageColumn, len(domain.Stages))
	index := make(map[domain.Stage]*domain.StageColumn, len(domain.Stages))
	for i, stage := range domain.Stages {
		columns[i] = &domain.StageColumn{Stage: stage, Deals: make([]*domain.Deal, 0), TotalValue: decimal.Zero}
		index[stage] = columns[i]
	}

	for _, deal := range deals {
		col, ok := index[deal.Stage]
		if !ok {
			continue
		}
		col.Deals = append(col.Deals, deal)
		col.Count++
		col.TotalValue = col.TotalValue.Add(deal.Value)
	}

	for _, col := range columns {
		sortByPosition(col.Deals)
	}
	return columns, nil
}

func (s *DealService) validateOwner(workspaceID int32, ownerID *uuid.UUID) error {
	if ownerID == nil {
		return nil
	}
	if _, err := s.membershipRepo.GetActive(workspaceID, *ownerID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrInvalidOwner
		}
		return err
	}
	return nil
}

func validateProbability(p int32) error {
	if p < 0 || p > 100 {
		return domain.ErrInvalidProbability
	}
	return nil
}

func excludeDeal(deals []*domain.Deal, id int32) []*domain.Deal {
	result := make([]*domain.Deal, 0, len(deals))
	for _, d := range deals {
		if d.ID != id {
			result = append(result, d)
		}
	}
	return result
}

func sortByPosition(deals []*domain.Deal) {
	sort.Slice(deals, func(i, j int) bool {
		if deals[i].Position != deals[j].Position {
			return deals[i].Position < deals[j].Position
		}
		return deals[i].ID < deals[j].ID
	})
}
