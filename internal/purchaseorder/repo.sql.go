package purchaseorder

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

const itemColumns = `id, purchase_order_id, product_id, ordered_quantity, unit_price, tax_rate,
discount_type, discount, subtotal, discount_amount, amount_after_discount, tax_amount, net_amount, total,
received_quantity, rejected_quantity, accepted_quantity, delivery_status, quality_status, quality_check,
ledger, returns, line_status, expected_delivery_date, last_received_by, last_received_at,
cancelled_by, cancelled_at, cancelled_reason, version, created_at, updated_at`

// GetItem returns one purchase order line.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ListItems returns the lines of one purchase order ordered by id.
func (r *Repository) ListItems(ctx context.Context, purchaseOrderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

// GetOrderHeader reads the parent purchase order fields used for enrichment.
func (r *Repository) GetOrderHeader(ctx context.Context, id int64) (OrderHeader, error) {
	var header OrderHeader
	err := r.pool.QueryRow(ctx, `SELECT id, number, delivery_date FROM purchase_orders WHERE id=$1`, id).
		Scan(&header.ID, &header.Number, &header.DeliveryDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderHeader{}, ErrNotFound
		}
		return OrderHeader{}, err
	}
	return header, nil
}

// CreateItem inserts a purchase order line.
func (tx *txRepo) CreateItem(ctx context.Context, item Item) (int64, error) {
	quality, ledger, returns, err := marshalItemBlobs(item)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, product_id, ordered_quantity, unit_price, tax_rate, discount_type, discount,
 subtotal, discount_amount, amount_after_discount, tax_amount, net_amount, total,
 received_quantity, rejected_quantity, accepted_quantity, delivery_status, quality_status, quality_check,
 ledger, returns, line_status, expected_delivery_date, last_received_by, last_received_at,
 cancelled_by, cancelled_at, cancelled_reason, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,0,NOW(),NOW())
RETURNING id`,
		item.PurchaseOrderID, item.ProductID, item.OrderedQuantity, item.UnitPrice, item.TaxRate,
		string(item.DiscountType), item.Discount,
		item.Subtotal, item.DiscountAmount, item.AmountAfterDiscount, item.TaxAmount, item.NetAmount, item.Total,
		item.ReceivedQuantity, item.RejectedQuantity, item.AcceptedQuantity,
		string(item.DeliveryStatus), string(item.QualityStatus), quality,
		ledger, returns, string(item.LineStatus), item.ExpectedDeliveryDate,
		item.LastReceivedBy, item.LastReceivedAt,
		item.CancelledBy, item.CancelledAt, item.CancelledReason,
	).Scan(&id)
	return id, err
}

// UpdateItem writes a recomputed line under its version; stale versions fail
// with shared.ErrVersionConflict.
func (tx *txRepo) UpdateItem(ctx context.Context, item Item) error {
	quality, ledger, returns, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_order_items SET
ordered_quantity=$1, unit_price=$2, tax_rate=$3, discount_type=$4, discount=$5,
subtotal=$6, discount_amount=$7, amount_after_discount=$8, tax_amount=$9, net_amount=$10, total=$11,
received_quantity=$12, rejected_quantity=$13, accepted_quantity=$14,
delivery_status=$15, quality_status=$16, quality_check=$17, ledger=$18, returns=$19,
line_status=$20, expected_delivery_date=$21, last_received_by=$22, last_received_at=$23,
cancelled_by=$24, cancelled_at=$25, cancelled_reason=$26, version=version+1, updated_at=NOW()
WHERE id=$27 AND version=$28`,
		item.OrderedQuantity, item.UnitPrice, item.TaxRate, string(item.DiscountType), item.Discount,
		item.Subtotal, item.DiscountAmount, item.AmountAfterDiscount, item.TaxAmount, item.NetAmount, item.Total,
		item.ReceivedQuantity, item.RejectedQuantity, item.AcceptedQuantity,
		string(item.DeliveryStatus), string(item.QualityStatus), quality, ledger, returns,
		string(item.LineStatus), item.ExpectedDeliveryDate, item.LastReceivedBy, item.LastReceivedAt,
		item.CancelledBy, item.CancelledAt, item.CancelledReason,
		item.ID, item.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

func marshalItemBlobs(item Item) (quality, ledger, returns []byte, err error) {
	if quality, err = json.Marshal(item.Quality); err != nil {
		return nil, nil, nil, err
	}
	ledgerEntries := item.Ledger
	if ledgerEntries == nil {
		ledgerEntries = []LedgerEntry{}
	}
	if ledger, err = json.Marshal(ledgerEntries); err != nil {
		return nil, nil, nil, err
	}
	returnEntries := item.Returns
	if returnEntries == nil {
		returnEntries = []ReturnEntry{}
	}
	if returns, err = json.Marshal(returnEntries); err != nil {
		return nil, nil, nil, err
	}
	return quality, ledger, returns, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var discountType, deliveryStatus, qualityStatus, lineStatus string
	var quality, ledger, returns []byte
	err := row.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.OrderedQuantity,
		&item.UnitPrice, &item.TaxRate, &discountType, &item.Discount,
		&item.Subtotal, &item.DiscountAmount, &item.AmountAfterDiscount, &item.TaxAmount,
		&item.NetAmount, &item.Total,
		&item.ReceivedQuantity, &item.RejectedQuantity, &item.AcceptedQuantity,
		&deliveryStatus, &qualityStatus, &quality, &ledger, &returns,
		&lineStatus, &item.ExpectedDeliveryDate, &item.LastReceivedBy, &item.LastReceivedAt,
		&item.CancelledBy, &item.CancelledAt, &item.CancelledReason,
		&item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.DiscountType = DiscountType(discountType)
	item.DeliveryStatus = DeliveryStatus(deliveryStatus)
	item.QualityStatus = QualityStatus(qualityStatus)
	item.LineStatus = LineStatus(lineStatus)
	if len(quality) > 0 {
		if err := json.Unmarshal(quality, &item.Quality); err != nil {
			return Item{}, err
		}
	}
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &item.Ledger); err != nil {
			return Item{}, err
		}
	}
	if len(returns) > 0 {
		if err := json.Unmarshal(returns, &item.Returns); err != nil {
			return Item{}, err
		}
	}
	return item, nil
}
