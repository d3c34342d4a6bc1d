package postgres

import (
	"context"
	"errors"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dealColumns = `id, workspace_id, name, value, stage, position, probability, close_date, owner_id, company_id, contact_id, created_at, updated_at`

const transitionColumns = `id, deal_id, workspace_id, from_stage, to_stage, from_position, to_position, value, probability, actor_id, created_at`

// DealRepository implements domain.DealRepository using PostgreSQL
type DealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository creates a new DealRepository
func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

// CreateWithTransition atomically creates a deal and its initial stage transition
func (r *DealRepository) CreateWithTransition(deal *domain.Deal, transition *domain.StageTransition) (*domain.Deal, error) {
	ctx := context.Background()

	value, err := decimalToPgNumeric(deal.Value)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Create the deal
	created, err := scanDeal(tx.QueryRow(ctx, `
		INSERT INTO deals (workspace_id, name, value, stage, position, probability, close_date, owner_id, company_id, contact_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+dealColumns,
		deal.WorkspaceID, deal.Name, value, string(deal.Stage), deal.Position, deal.Probability,
		timePtrToPgDate(deal.CloseDate), uuidPtrToPg(deal.OwnerID),
		int32PtrToPg(deal.CompanyID), int32PtrToPg(deal.ContactID)))
	if err != nil {
		return nil, err
	}

	// 2. Record the initial transition
	transition.DealID = created.ID
	if err := insertTransition(ctx, tx, transition); err != nil {
		return nil, err
	}

	// 3. Commit
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a deal by ID within a workspace
func (r *DealRepository) GetByID(workspaceID int32, id int32) (*domain.Deal, error) {
	return scanDeal(r.pool.QueryRow(context.Background(),
		`SELECT `+dealColumns+` FROM deals WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

// ListByStage returns a stage's deals ordered by position, then id
func (r *DealRepository) ListByStage(workspaceID int32, stage domain.Stage) ([]*domain.Deal, error) {
	return r.list(`
		SELECT `+dealColumns+` FROM deals
		WHERE workspace_id = $1 AND stage = $2
		ORDER BY position ASC, id ASC`, workspaceID, string(stage))
}

// ListByWorkspace returns all deals of a workspace ordered by stage position, then id
func (r *DealRepository) ListByWorkspace(workspaceID int32) ([]*domain.Deal, error) {
	return r.list(`
		SELECT `+dealColumns+` FROM deals
		WHERE workspace_id = $1
		ORDER BY position ASC, id ASC`, workspaceID)
}

// UpdateWithTransition saves the deal and, when transition is non-nil, appends
// it in the same database transaction
func (r *DealRepository) UpdateWithTransition(deal *domain.Deal, transition *domain.StageTransition) (*domain.Deal, error) {
	ctx := context.Background()

	value, err := decimalToPgNumeric(deal.Value)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	updated, err := scanDeal(tx.QueryRow(ctx, `
		UPDATE deals SET
			name = $3, value = $4, stage = $5, position = $6, probability = $7,
			close_date = $8, owner_id = $9, company_id = $10, contact_id = $11, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING `+dealColumns,
		deal.WorkspaceID, deal.ID, deal.Name, value, string(deal.Stage), deal.Position, deal.Probability,
		timePtrToPgDate(deal.CloseDate), uuidPtrToPg(deal.OwnerID),
		int32PtrToPg(deal.CompanyID), int32PtrToPg(deal.ContactID)))
	if err != nil {
		return nil, err
	}

	if transition != nil {
		transition.DealID = updated.ID
		if err := insertTransition(ctx, tx, transition); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a deal; its transitions cascade
func (r *DealRepository) Delete(workspaceID int32, id int32) error {
	tag, err := r.pool.Exec(context.Background(),
		`DELETE FROM deals WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}

// ListTransitions returns a deal's audit trail, oldest first
func (r *DealRepository) ListTransitions(workspaceID int32, dealID int32) ([]*domain.StageTransition, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT `+transitionColumns+` FROM deal_stage_transitions
		WHERE workspace_id = $1 AND deal_id = $2
		ORDER BY created_at ASC, id ASC`, workspaceID, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transitions := make([]*domain.StageTransition, 0)
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

func (r *DealRepository) list(query string, args ...any) ([]*domain.Deal, error) {
	rows, err := r.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]*domain.Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// Helper functions

func insertTransition(ctx context.Context, tx pgx.Tx, t *domain.StageTransition) error {
	value, err := decimalToPgNumeric(t.Value)
	if err != nil {
		return err
	}

	var fromStage pgtype.Text
	if t.FromStage != nil {
		fromStage = pgtype.Text{String: string(*t.FromStage), Valid: true}
	}

	return tx.QueryRow(ctx, `
		INSERT INTO deal_stage_transitions
			(deal_id, workspace_id, from_stage, to_stage, from_position, to_position, value, probability, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		t.DealID, t.WorkspaceID, fromStage, string(t.ToStage), int64PtrToPg(t.FromPosition), t.ToPosition,
		value, t.Probability, uuidToPg(t.ActorID),
	).Scan(&t.ID, &t.CreatedAt)
}

func scanDeal(row rowScanner) (*domain.Deal, error) {
	var (
		deal      domain.Deal
		value     pgtype.Numeric
		stage     string
		closeDate pgtype.Date
		ownerID   pgtype.UUID
		companyID pgtype.Int4
		contactID pgtype.Int4
	)
	err := row.Scan(&deal.ID, &deal.WorkspaceID, &deal.Name, &value, &stage, &deal.Position, &deal.Probability,
		&closeDate, &ownerID, &companyID, &contactID, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDealNotFound
		}
		return nil, err
	}
	deal.Value = pgNumericToDecimal(value)
	deal.Stage = domain.Stage(stage)
	deal.CloseDate = pgDateToTimePtr(closeDate)
	deal.OwnerID = pgToUUIDPtr(ownerID)
	deal.CompanyID = pgInt4ToPtr(companyID)
	deal.ContactID = pgInt4ToPtr(contactID)
	return &deal, nil
}

func scanTransition(row rowScanner) (*domain.StageTransition, error) {
	var (
		t            domain.StageTransition
		fromStage    pgtype.Text
		toStage      string
		fromPosition pgtype.Int8
		value        pgtype.Numeric
		actorID      pgtype.UUID
	)
	err := row.Scan(&t.ID, &t.DealID, &t.WorkspaceID, &fromStage, &toStage, &fromPosition, &t.ToPosition,
		&value, &t.Probability, &actorID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if fromStage.Valid {
		s := domain.Stage(fromStage.String)
		t.FromStage = &s
	}
	t.ToStage = domain.Stage(toStage)
	t.FromPosition = pgInt8ToPtr(fromPosition)
	t.Value = pgNumericToDecimal(value)
	t.ActorID = pgToUUID(actorID)
	return &t, nil
}
