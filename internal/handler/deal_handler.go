package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// DealHandler handles pipeline HTTP requests
type DealHandler struct {
	dealService *service.DealService
}

// NewDealHandler creates a new DealHandler
func NewDealHandler(dealService *service.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// CreateDealRequest represents the create deal request body
type CreateDealRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Value       string  `json:"value" validate:"omitempty,numeric"`
	Stage       string  `json:"stage"`
	Probability *int32  `json:"probability" validate:"omitempty,gte=0,lte=100"`
	CloseDate   *string `json:"closeDate" validate:"omitempty,datetime=2006-01-02"`
	OwnerID     *string `json:"ownerId" validate:"omitempty,uuid"`
	CompanyID   *int32  `json:"companyId"`
	ContactID   *int32  `json:"contactId"`
}

// UpdateDealRequest represents the update deal request body; omitted fields
// stay unchanged. clearCloseDate removes a close date.
type UpdateDealRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=255"`
	Value          *string `json:"value" validate:"omitempty,numeric"`
	Probability    *int32  `json:"probability" validate:"omitempty,gte=0,lte=100"`
	CloseDate      *string `json:"closeDate" validate:"omitempty,datetime=2006-01-02"`
	ClearCloseDate bool    `json:"clearCloseDate" validate:"excluded_with=CloseDate"`
	OwnerID        *string `json:"ownerId" validate:"omitempty,uuid"`
	CompanyID      *int32  `json:"companyId"`
	ContactID      *int32  `json:"contactId"`
}

// MoveDealRequest represents a drop on the board. Without targetId the deal
// goes to the end of stage.
type MoveDealRequest struct {
	Stage    string `json:"stage" validate:"required"`
	TargetID *int32 `json:"targetId"`
	Edge     string `json:"edge"`
}

// GetBoard godoc
// @Summary Get the pipeline board
// @Description Returns every stage in pipeline order with its deals sorted by position, a count and a total value
// @Tags deals
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Success 200 {array} StageColumnResponse
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /deals/board [get]
func (h *DealHandler) GetBoard(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	columns, err := h.dealService.GetBoard(actor)
	if err != nil {
		return NewDomainError(c, err, "get board")
	}

	resp := make([]StageColumnResponse, 0, len(columns))
	for _, col := range columns {
		deals := make([]DealResponse, 0, len(col.Deals))
		for _, d := range col.Deals {
			deals = append(deals, toDealResponse(d))
		}
		resp = append(resp, StageColumnResponse{
			Stage:      string(col.Stage),
			Deals:      deals,
			Count:      col.Count,
			TotalValue: col.TotalValue.StringFixed(2),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateDeal godoc
// @Summary Create a deal
// @Description Creates a deal at the end of its stage (lead when omitted) and records the initial transition
// @Tags deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param request body CreateDealRequest true "Deal creation request"
// @Success 201 {object} DealResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /deals [post]
func (h *DealHandler) CreateDeal(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	var req CreateDealRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	input := service.CreateDealInput{
		Name:        req.Name,
		Value:       decimal.Zero,
		Stage:       domain.Stage(req.Stage),
		Probability: req.Probability,
		CompanyID:   req.CompanyID,
		ContactID:   req.ContactID,
	}
	if req.Value != "" {
		// numeric tag guarantees a parseable value
		input.Value, _ = decimal.NewFromString(req.Value)
	}
	input.CloseDate = parseDate(req.CloseDate)
	input.OwnerID = parseOptionalUUID(req.OwnerID)

	deal, err := h.dealService.CreateDeal(actor, input)
	if err != nil {
		return NewDomainError(c, err, "create deal")
	}
	return c.JSON(http.StatusCreated, toDealResponse(deal))
}

// GetDeal godoc
// @Summary Get a deal
// @Tags deals
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param id path int true "Deal ID"
// @Success 200 {object} DealResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /deals/{id} [get]
func (h *DealHandler) GetDeal(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	id, ok := parseDealID(c)
	if !ok {
		return invalidDealID(c)
	}

	deal, err := h.dealService.GetDeal(actor, id)
	if err != nil {
		return NewDomainError(c, err, "get deal")
	}
	return c.JSON(http.StatusOK, toDealResponse(deal))
}

// UpdateDeal godoc
// @Summary Update a deal
// @Description Changes the given fields. A transition is recorded when value or probability changes.
// @Tags deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param id path int true "Deal ID"
// @Param request body UpdateDealRequest true "Deal update request"
// @Success 200 {object} DealResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /deals/{id} [patch]
func (h *DealHandler) UpdateDeal(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	id, ok := parseDealID(c)
	if !ok {
		return invalidDealID(c)
	}

	var req UpdateDealRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	input := service.UpdateDealInput{
		Name:           req.Name,
		Probability:    req.Probability,
		CloseDate:      parseDate(req.CloseDate),
		ClearCloseDate: req.ClearCloseDate,
		OwnerID:        parseOptionalUUID(req.OwnerID),
		CompanyID:      req.CompanyID,
		ContactID:      req.ContactID,
	}
	if req.Value != nil {
		value, err := decimal.NewFromString(*req.Value)
		if err != nil {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "value", Message: "Must be a number"},
			})
		}
		input.Value = &value
	}

	deal, err := h.dealService.UpdateDeal(actor, id, input)
	if err != nil {
		return NewDomainError(c, err, "update deal")
	}
	return c.JSON(http.StatusOK, toDealResponse(deal))
}

// MoveDeal godoc
// @Summary Move a deal on the board
// @Description Places the deal before or after targetId in stage, or at the end of stage without a target
// @Tags deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param id path int true "Deal ID"
// @Param request body MoveDealRequest true "Drop position"
// @Success 200 {object} DealResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /deals/{id}/move [post]
func (h *DealHandler) MoveDeal(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	id, ok := parseDealID(c)
	if !ok {
		return invalidDealID(c)
	}

	var req MoveDealRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	deal, err := h.dealService.MoveDeal(actor, id, service.MoveDealInput{
		Stage:    domain.Stage(req.Stage),
		TargetID: req.TargetID,
		Edge:     domain.DropEdge(req.Edge),
	})
	if err != nil {
		return NewDomainError(c, err, "move deal")
	}
	return c.JSON(http.StatusOK, toDealResponse(deal))
}

// DeleteDeal godoc
// @Summary Delete a deal
// @Tags deals
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param id path int true "Deal ID"
// @Success 204 "No Content"
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /deals/{id} [delete]
func (h *DealHandler) DeleteDeal(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	id, ok := parseDealID(c)
	if !ok {
		return invalidDealID(c)
	}

	if err := h.dealService.DeleteDeal(actor, id); err != nil {
		return NewDomainError(c, err, "delete deal")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListTransitions godoc
// @Summary List stage transitions
// @Description Returns the audit trail of a deal, oldest first
// @Tags deals
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param id path int true "Deal ID"
// @Success 200 {array} TransitionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /deals/{id}/transitions [get]
func (h *DealHandler) ListTransitions(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	id, ok := parseDealID(c)
	if !ok {
		return invalidDealID(c)
	}

	transitions, err := h.dealService.ListTransitions(actor, id)
	if err != nil {
		return NewDomainError(c, err, "list transitions")
	}

	resp := make([]TransitionResponse, 0, len(transitions))
	for _, t := range transitions {
		resp = append(resp, toTransitionResponse(t))
	}
	return c.JSON(http.StatusOK, resp)
}

func parseDealID(c echo.Context) (int32, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

func invalidDealID(c echo.Context) error {
	return NewValidationError(c, "Invalid deal ID", []ValidationError{
		{Field: "id", Message: "Must be a positive integer"},
	})
}

// parseDate parses a validated YYYY-MM-DD string
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

// parseOptionalUUID parses a validated UUID string
func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}
