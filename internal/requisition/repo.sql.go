package requisition

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const itemColumns = `id, requisition_id, product_id, quantity, estimated_unit_price, total_estimated_cost,
status, approved_quantity, approved_unit_price, approved_total_cost, approved_by, approved_at, approval_comments,
rejected_by, rejected_at, rejection_reason, actual_unit_price, actual_total_cost,
budget, inventory, urgency, alternative_products, sourcing_recommendation, version, created_at, updated_at`

// GetItem returns one requisition line.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM requisition_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ListItems returns the lines of one requisition ordered by id.
func (r *Repository) ListItems(ctx context.Context, requisitionID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM requisition_items WHERE requisition_id=$1 ORDER BY id`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListOpenItems returns every line still awaiting a workflow decision. The
// stock-refresh sweep iterates these.
func (r *Repository) ListOpenItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM requisition_items
WHERE status NOT IN ('rejected','cancelled','converted_to_po') ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// GetProduct reads the product stock fields used for enrichment.
func (r *Repository) GetProduct(ctx context.Context, id int64) (ProductSnapshot, error) {
	var snapshot ProductSnapshot
	err := r.pool.QueryRow(ctx, `SELECT id, current_stock, reorder_level FROM products WHERE id=$1`, id).
		Scan(&snapshot.ID, &snapshot.CurrentStock, &snapshot.ReorderLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductSnapshot{}, ErrNotFound
		}
		return ProductSnapshot{}, err
	}
	return snapshot, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItem inserts a requisition line.
func (tx *txRepo) CreateItem(ctx context.Context, item Item) (int64, error) {
	budget, inventory, alternatives, err := marshalItemBlobs(item)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO requisition_items
(requisition_id, product_id, quantity, estimated_unit_price, total_estimated_cost,
 status, approved_quantity, approved_unit_price, approved_total_cost, approved_by, approved_at, approval_comments,
 rejected_by, rejected_at, rejection_reason, actual_unit_price, actual_total_cost,
 budget, inventory, urgency, alternative_products, sourcing_recommendation, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,0,NOW(),NOW())
RETURNING id`,
		item.RequisitionID, item.ProductID, item.Quantity, item.EstimatedUnitPrice, item.TotalEstimatedCost,
		string(item.Status), item.ApprovedQuantity, item.ApprovedUnitPrice, item.ApprovedTotalCost,
		item.ApprovedBy, item.ApprovedAt, item.ApprovalComments,
		item.RejectedBy, item.RejectedAt, item.RejectionReason,
		item.ActualUnitPrice, item.ActualTotalCost,
		budget, inventory, string(item.Urgency), alternatives, item.SourcingRecommendation,
	).Scan(&id)
	return id, err
}

// UpdateItem writes a recomputed line under its version; stale versions fail
// with shared.ErrVersionConflict.
func (tx *txRepo) UpdateItem(ctx context.Context, item Item) error {
	budget, inventory, alternatives, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE requisition_items SET
quantity=$1, estimated_unit_price=$2, total_estimated_cost=$3, status=$4,
approved_quantity=$5, approved_unit_price=$6, approved_total_cost=$7,
approved_by=$8, approved_at=$9, approval_comments=$10,
rejected_by=$11, rejected_at=$12, rejection_reason=$13,
actual_unit_price=$14, actual_total_cost=$15,
budget=$16, inventory=$17, urgency=$18, alternative_products=$19, sourcing_recommendation=$20,
version=version+1, updated_at=NOW()
WHERE id=$21 AND version=$22`,
		item.Quantity, item.EstimatedUnitPrice, item.TotalEstimatedCost, string(item.Status),
		item.ApprovedQuantity, item.ApprovedUnitPrice, item.ApprovedTotalCost,
		item.ApprovedBy, item.ApprovedAt, item.ApprovalComments,
		item.RejectedBy, item.RejectedAt, item.RejectionReason,
		item.ActualUnitPrice, item.ActualTotalCost,
		budget, inventory, string(item.Urgency), alternatives, item.SourcingRecommendation,
		item.ID, item.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

func marshalItemBlobs(item Item) (budget, inventory, alternatives []byte, err error) {
	if budget, err = json.Marshal(item.Budget); err != nil {
		return nil, nil, nil, err
	}
	if inventory, err = json.Marshal(item.Inventory); err != nil {
		return nil, nil, nil, err
	}
	alt := item.AlternativeProducts
	if alt == nil {
		alt = []AlternativeProduct{}
	}
	if alternatives, err = json.Marshal(alt); err != nil {
		return nil, nil, nil, err
	}
	return budget, inventory, alternatives, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var status, urgency string
	var budget, inventory, alternatives []byte
	err := row.Scan(&item.ID, &item.RequisitionID, &item.ProductID, &item.Quantity,
		&item.EstimatedUnitPrice, &item.TotalEstimatedCost, &status,
		&item.ApprovedQuantity, &item.ApprovedUnitPrice, &item.ApprovedTotalCost,
		&item.ApprovedBy, &item.ApprovedAt, &item.ApprovalComments,
		&item.RejectedBy, &item.RejectedAt, &item.RejectionReason,
		&item.ActualUnitPrice, &item.ActualTotalCost,
		&budget, &inventory, &urgency, &alternatives, &item.SourcingRecommendation,
		&item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.Status = Status(status)
	item.Urgency = Urgency(urgency)
	if len(budget) > 0 {
		if err := json.Unmarshal(budget, &item.Budget); err != nil {
			return Item{}, err
		}
	}
	if len(inventory) > 0 {
		if err := json.Unmarshal(inventory, &item.Inventory); err != nil {
			return Item{}, err
		}
	}
	if len(alternatives) > 0 {
		if err := json.Unmarshal(alternatives, &item.AlternativeProducts); err != nil {
			return Item{}, err
		}
	}
	return item, nil
}
